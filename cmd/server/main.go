package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/backend"
	"github.com/oggyb/edublin-connect/internal/breaker"
	"github.com/oggyb/edublin-connect/internal/cache"
	"github.com/oggyb/edublin-connect/internal/config"
	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/localstore"
	"github.com/oggyb/edublin-connect/internal/logger"
	"github.com/oggyb/edublin-connect/internal/metrics"
	"github.com/oggyb/edublin-connect/internal/scheduler"
	"github.com/oggyb/edublin-connect/internal/server"
	"github.com/oggyb/edublin-connect/internal/service/auth"
	"github.com/oggyb/edublin-connect/internal/service/groups"
	"github.com/oggyb/edublin-connect/internal/service/ops"
	"github.com/oggyb/edublin-connect/internal/service/search"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// Backend is optional: without it every call is served from fallback data
	var store backend.Store
	if cfg.BackendConfigured() {
		database, err := db.NewDB(cfg)
		if err != nil {
			// serve as unconfigured
			log.Error("failed to init db, continuing in fallback mode", "err", err)
		} else {
			store = backend.NewGormStore(database,
				backend.WithSessionTTL(cfg.Backend.SessionTTL),
				backend.WithAutoConfirm(cfg.Backend.AutoConfirm),
				backend.WithLogger(log.With("component", "backend")),
			)
		}
	}

	sessions, err := cache.New(cfg)
	if err != nil {
		return err
	}
	if rc, ok := sessions.(*cache.RedisCache); ok {
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis unreachable, using in-memory session cache", "err", err)
			sessions = cache.NewMemoryCache(cfg.Cache.TTL, nil)
		}
	}

	local, err := localstore.Open(cfg.Fallback.StorePath, log)
	if err != nil {
		return err
	}
	defer local.Close()

	m := metrics.New()
	gw, err := gateway.New(gateway.Options{
		Store: store,
		Breaker: breaker.New(breaker.Config{
			OpenThreshold:      cfg.Breaker.OpenThreshold,
			PermanentThreshold: cfg.Breaker.PermanentThreshold,
			Cooldown:           cfg.Breaker.Cooldown,
			FailureWindow:      cfg.Breaker.FailureWindow,
		}),
		Cache:    sessions,
		Local:    local,
		Metrics:  m,
		Logger:   log.With("component", "gateway"),
		Timeouts: gateway.TimeoutsFromConfig(cfg),
		Force:    cfg.Fallback.Force,
	})
	if err != nil {
		return err
	}

	// Inject dependencies into app context
	appCtx := app.New(cfg, gw, m, log)

	registrars := []server.Registrar{
		auth.NewRegistrar(appCtx),
		search.NewRegistrar(appCtx),
		groups.NewRegistrar(appCtx),
		ops.NewRegistrar(appCtx),
	}

	jobs, err := scheduler.New(ctx, gw, scheduler.ConfigFrom(cfg), log.With("component", "scheduler"))
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() {
		if err := jobs.Shutdown(); err != nil {
			log.Warn("scheduler shutdown", "err", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port, "mode", gw.Status().Mode)
		return server.StartGRPCServer(ctx, cfg, log, registrars...)
	})
	if cfg.HTTP.Addr != "" {
		g.Go(func() error {
			log.Info("starting ops server", "addr", cfg.HTTP.Addr)
			return server.StartOpsServer(ctx, cfg.HTTP.Addr, server.NewOpsRouter(gw, m, log))
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
