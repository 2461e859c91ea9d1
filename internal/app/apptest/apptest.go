// Package apptest builds AppContexts and in-process gRPC servers for
// service tests.
package apptest

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/backend"
	"github.com/oggyb/edublin-connect/internal/config"
	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/localstore"
	"github.com/oggyb/edublin-connect/internal/logger"
	"github.com/oggyb/edublin-connect/internal/metrics"
	"github.com/oggyb/edublin-connect/internal/server"
)

// Env is a wired application over an in-memory backend.
type Env struct {
	App   *app.AppContext
	DB    *gorm.DB
	Store *backend.GormStore
}

type options struct {
	noBackend bool
	force     bool
}

type Option func(*options)

// WithoutBackend leaves the backend unconfigured.
func WithoutBackend() Option { return func(o *options) { o.noBackend = true } }

// Forced starts the gateway in forced fallback.
func Forced() Option { return func(o *options) { o.force = true } }

// New wires a gateway over an sqlite database private to t.
func New(t *testing.T, opts ...Option) *Env {
	t.Helper()
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	local, err := localstore.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	env := &Env{}
	gwOpts := gateway.Options{
		Local:   local,
		Metrics: metrics.New(),
		Logger:  logger.Discard(),
		Force:   o.force,
	}
	if !o.noBackend {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
		env.DB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard, TranslateError: true, NowFunc: db.NowMillis})
		require.NoError(t, err)
		sqlDB, err := env.DB.DB()
		require.NoError(t, err)
		t.Cleanup(func() { _ = sqlDB.Close() })
		require.NoError(t, db.Migrate(env.DB))

		env.Store = backend.NewGormStore(env.DB, backend.WithLogger(logger.Discard()))
		gwOpts.Store = env.Store
	}

	gw, err := gateway.New(gwOpts)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Locale = "pt-BR"
	env.App = app.New(cfg, gw, gwOpts.Metrics, logger.Discard())
	return env
}

// Serve runs a gRPC server with registrars on an in-memory listener and
// returns a client connection to it.
func Serve(t *testing.T, registrars ...server.Registrar) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := server.NewGRPCServer(logger.Discard(), registrars...)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := server.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}
