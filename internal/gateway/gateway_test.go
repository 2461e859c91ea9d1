package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/edublin-connect/internal/backend"
	"github.com/oggyb/edublin-connect/internal/breaker"
	"github.com/oggyb/edublin-connect/internal/cache"
	"github.com/oggyb/edublin-connect/internal/config"
	"github.com/oggyb/edublin-connect/internal/db"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/localstore"
	"github.com/oggyb/edublin-connect/internal/logger"
	"github.com/oggyb/edublin-connect/internal/metrics"
	"github.com/oggyb/edublin-connect/internal/repository"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubStore is a real sqlite-backed store with per-method call counters,
// injected delays and injected failures.
type stubStore struct {
	*backend.GormStore

	mu    sync.Mutex
	calls map[string]int
	delay map[string]time.Duration
	fail  map[string]error
}

func (s *stubStore) hit(ctx context.Context, name string) error {
	s.mu.Lock()
	s.calls[name]++
	d, err := s.delay[name], s.fail[name]
	s.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *stubStore) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubStore) Delay(name string, d time.Duration) {
	s.mu.Lock()
	s.delay[name] = d
	s.mu.Unlock()
}

func (s *stubStore) Fail(name string, err error) {
	s.mu.Lock()
	s.fail[name] = err
	s.mu.Unlock()
}

func (s *stubStore) ResetCalls() {
	s.mu.Lock()
	s.calls = make(map[string]int)
	s.mu.Unlock()
}

func (s *stubStore) SignUp(ctx context.Context, email, password string, md map[string]string) (*db.AuthUser, *db.AuthSession, error) {
	if err := s.hit(ctx, "SignUp"); err != nil {
		return nil, nil, err
	}
	return s.GormStore.SignUp(ctx, email, password, md)
}

func (s *stubStore) SignIn(ctx context.Context, email, password string) (*db.AuthUser, *db.AuthSession, error) {
	if err := s.hit(ctx, "SignIn"); err != nil {
		return nil, nil, err
	}
	return s.GormStore.SignIn(ctx, email, password)
}

func (s *stubStore) SignOut(ctx context.Context, token string) error {
	if err := s.hit(ctx, "SignOut"); err != nil {
		return err
	}
	return s.GormStore.SignOut(ctx, token)
}

func (s *stubStore) GetUser(ctx context.Context, token string) (*db.AuthUser, error) {
	if err := s.hit(ctx, "GetUser"); err != nil {
		return nil, err
	}
	return s.GormStore.GetUser(ctx, token)
}

func (s *stubStore) Ping(ctx context.Context) error {
	if err := s.hit(ctx, "Ping"); err != nil {
		return err
	}
	return s.GormStore.Ping(ctx)
}

func (s *stubStore) Users() repository.Rows[db.User] {
	return stubUsers{Rows: s.GormStore.Users(), s: s}
}

type stubUsers struct {
	repository.Rows[db.User]
	s *stubStore
}

func (r stubUsers) First(ctx context.Context, q repository.Query) (db.User, error) {
	if err := r.s.hit(ctx, "Users.First"); err != nil {
		return db.User{}, err
	}
	return r.Rows.First(ctx, q)
}

func (r stubUsers) Insert(ctx context.Context, u *db.User) error {
	if err := r.s.hit(ctx, "Users.Insert"); err != nil {
		return err
	}
	return r.Rows.Insert(ctx, u)
}

type fixture struct {
	gw    *gateway.Gateway
	store *stubStore
	br    *breaker.Breaker
	clk   *clock
	local *localstore.Store
	gdb   *gorm.DB
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	noBackend   bool
	autoConfirm bool
	force       bool
}

func withoutBackend() fixtureOption { return func(c *fixtureConfig) { c.noBackend = true } }
func withConfirmation() fixtureOption {
	return func(c *fixtureConfig) { c.autoConfirm = false }
}
func forced() fixtureOption { return func(c *fixtureConfig) { c.force = true } }

func testTimeouts() gateway.Timeouts {
	t := gateway.DefaultTimeouts()
	t.ProfileQuick = 100 * time.Millisecond
	return t
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{autoConfirm: true}
	for _, o := range opts {
		o(&cfg)
	}

	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	local, err := localstore.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	f := &fixture{clk: clk, local: local}
	f.br = breaker.New(breaker.Config{Now: clk.Now})

	var store backend.Store
	if !cfg.noBackend {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
		f.gdb, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard, TranslateError: true, NowFunc: db.NowMillis})
		require.NoError(t, err)
		require.NoError(t, db.Migrate(f.gdb))
		f.store = &stubStore{
			GormStore: backend.NewGormStore(f.gdb, backend.WithAutoConfirm(cfg.autoConfirm), backend.WithLogger(logger.Discard())),
			calls:     make(map[string]int),
			delay:     make(map[string]time.Duration),
			fail:      make(map[string]error),
		}
		store = f.store
	}

	f.gw, err = gateway.New(gateway.Options{
		Store:    store,
		Breaker:  f.br,
		Cache:    cache.NewMemoryCache(cache.DefaultTTL, clk.Now),
		Local:    local,
		Metrics:  metrics.New(),
		Logger:   logger.Discard(),
		Timeouts: testTimeouts(),
		Force:    cfg.force,
		Now:      clk.Now,
	})
	require.NoError(t, err)
	return f
}

func TestNewRequiresLocalStore(t *testing.T) {
	_, err := gateway.New(gateway.Options{})
	assert.Error(t, err)
}

func TestTimeoutsFromConfig(t *testing.T) {
	var cfg config.Config
	cfg.Timeouts.Auth = 4 * time.Second
	cfg.Timeouts.Quick = time.Second
	got := gateway.TimeoutsFromConfig(&cfg)

	assert.Equal(t, 4*time.Second, got.Auth)
	assert.Equal(t, 3*time.Second, got.Profile)
	assert.Equal(t, 2*time.Second, got.ProfileQuick)
	assert.Equal(t, 1200*time.Millisecond, got.Watch)
	assert.Equal(t, time.Second, got.Quick)
	assert.Equal(t, gateway.DefaultTimeouts().Default, got.Default)
}

func TestStatusModes(t *testing.T) {
	f := newFixture(t, withoutBackend())
	st := f.gw.Status()
	assert.False(t, st.Configured)
	assert.True(t, st.InFallback)
	assert.Equal(t, "demo", st.Mode)

	f = newFixture(t)
	st = f.gw.Status()
	assert.True(t, st.Configured)
	assert.Equal(t, "remote", st.Mode)
	assert.Equal(t, breaker.StateClosed, st.Breaker.State)
}

func TestForcedFallbackSkipsBackend(t *testing.T) {
	f := newFixture(t, forced())
	ctx := context.Background()

	assert.True(t, f.gw.InFallback())
	res, err := f.gw.SignIn(ctx, "demo@edublin.com.br", "demo123")
	require.NoError(t, err)
	assert.True(t, gateway.IsLocalSession(res.Session.AccessToken))
	assert.Zero(t, f.store.Calls("SignIn"))
}

func TestForceFallbackAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := signUp(t, f, "ana@email.com")
	_, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)

	f.gw.ForceFallback(ctx, "maintenance")
	st := f.gw.Status()
	assert.Equal(t, "demo", st.Mode)
	assert.True(t, st.Breaker.Forced)
	assert.Equal(t, "maintenance", st.Breaker.Reason)

	// the remote session is not known locally once the cache is purged
	u, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, u)

	f.gw.ResetBreaker(ctx)
	assert.Equal(t, "remote", f.gw.Status().Mode)
	u, err = f.gw.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, res.User.ID, u.ID)
}

func TestClearFallbackData(t *testing.T) {
	f := newFixture(t, withoutBackend())
	ctx := context.Background()

	res, err := f.gw.SignIn(ctx, "demo@edublin.com.br", "demo123")
	require.NoError(t, err)

	require.NoError(t, f.gw.ClearFallbackData(ctx))
	u, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestTestConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("fallback", func(t *testing.T) {
		f := newFixture(t, withoutBackend())
		st := f.gw.TestConnection(ctx)
		assert.True(t, st.IsSetup)
		assert.Equal(t, "demo_mode", st.Reason)
		assert.True(t, st.ShouldUseFallback)
	})

	t.Run("healthy", func(t *testing.T) {
		f := newFixture(t)
		st := f.gw.TestConnection(ctx)
		assert.True(t, st.IsSetup)
		assert.False(t, st.ShouldUseFallback)
		assert.Equal(t, 1, f.store.Calls("Ping"))
	})

	t.Run("failing", func(t *testing.T) {
		f := newFixture(t)
		f.store.Fail("Ping", errors.New("connection refused"))

		st := f.gw.TestConnection(ctx)
		assert.False(t, st.IsSetup)
		assert.Equal(t, "connection_failed", st.Reason)
		assert.False(t, st.ShouldUseFallback)

		st = f.gw.TestConnection(ctx)
		assert.True(t, st.ShouldUseFallback)

		st = f.gw.TestConnection(ctx)
		assert.Equal(t, "circuit_breaker_open", st.Reason)
		assert.Equal(t, 2, f.store.Calls("Ping"))
	})

	t.Run("schema missing", func(t *testing.T) {
		f := newFixture(t)
		f.store.Fail("Ping", svcErr.New(svcErr.KindNotFound, ""))
		st := f.gw.TestConnection(ctx)
		assert.True(t, st.NeedsSetup)
		assert.Equal(t, "schema_missing", st.Reason)
		assert.Zero(t, f.br.Snapshot().FailureCount)
	})
}

func TestBreakerOpensThenLatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Fail("Ping", errors.New("connection refused"))

	f.gw.TestConnection(ctx)
	f.gw.TestConnection(ctx)
	snap := f.br.Snapshot()
	require.True(t, snap.IsOpen)
	assert.Equal(t, breaker.StateOpen, snap.State)

	// nothing reaches the backend before the cooldown
	f.clk.Advance(30 * time.Second)
	f.gw.TestConnection(ctx)
	assert.Equal(t, 2, f.store.Calls("Ping"))

	for i := 0; i < 3; i++ {
		f.clk.Advance(61 * time.Second)
		f.gw.TestConnection(ctx)
	}
	assert.Equal(t, 5, f.store.Calls("Ping"))
	snap = f.br.Snapshot()
	assert.True(t, snap.PermanentFallback)
	assert.True(t, f.gw.InFallback())

	// latched: no further remote traffic even after the cooldown
	f.clk.Advance(10 * time.Minute)
	st := f.gw.TestConnection(ctx)
	assert.Equal(t, "demo_mode", st.Reason)
	res, err := f.gw.SignIn(ctx, "demo@edublin.com.br", "demo123")
	require.NoError(t, err)
	assert.Equal(t, "demo-user-default", res.User.ID)
	assert.Equal(t, 5, f.store.Calls("Ping"))
	assert.Zero(t, f.store.Calls("SignIn"))
}

func TestCurrentUserTimeoutsOpenBreaker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// longer than the adaptive floor, so every attempt times out
	f.store.Delay("GetUser", 700*time.Millisecond)

	u, err := f.gw.CurrentUser(ctx, "some-session")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, 1, f.br.Snapshot().FailureCount)

	// past the cache ttl, inside the cooldown
	f.clk.Advance(11 * time.Second)
	u, err = f.gw.CurrentUser(ctx, "some-session")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.True(t, f.br.Snapshot().IsOpen)

	f.clk.Advance(11 * time.Second)
	u, err = f.gw.CurrentUser(ctx, "some-session")
	require.Error(t, err)
	assert.True(t, svcErr.Is(err, svcErr.KindUnavailable))
	assert.Nil(t, u)
	assert.Equal(t, 2, f.store.Calls("GetUser"))
}

func TestCanceledCallDoesNotCount(t *testing.T) {
	f := newFixture(t)
	f.store.Delay("Ping", 300*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	f.gw.TestConnection(ctx)
	assert.Zero(t, f.br.Snapshot().FailureCount)
}

func TestRunAndRunOr(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	remote := func(context.Context, backend.Store) (string, error) { return "", boom }
	fb := func() (string, error) { return "fallback", nil }

	t.Run("run in fallback", func(t *testing.T) {
		f := newFixture(t, withoutBackend())
		v, err := gateway.Run(ctx, f.gw, "op", remote, fb)
		require.NoError(t, err)
		assert.Equal(t, "fallback", v)

		_, err = gateway.Run[string](ctx, f.gw, "op", remote, nil)
		assert.True(t, svcErr.Is(err, svcErr.KindFallback))
	})

	t.Run("run surfaces remote errors", func(t *testing.T) {
		f := newFixture(t)
		_, err := gateway.Run(ctx, f.gw, "op", remote, fb)
		assert.True(t, svcErr.Is(err, svcErr.KindUnknown))
		assert.Equal(t, "op", svcErr.OpOf(err))
	})

	t.Run("run or substitutes", func(t *testing.T) {
		f := newFixture(t)
		v, err := gateway.RunOr(ctx, f.gw, "op", remote, fb)
		require.NoError(t, err)
		assert.Equal(t, "fallback", v)

		denied := func(context.Context, backend.Store) (string, error) {
			return "", svcErr.New(svcErr.KindPermissionDenied, "")
		}
		_, err = gateway.RunOr(ctx, f.gw, "op", denied, fb)
		assert.True(t, svcErr.Is(err, svcErr.KindPermissionDenied))
	})

	t.Run("run or while open", func(t *testing.T) {
		f := newFixture(t)
		_, _ = gateway.RunOr(ctx, f.gw, "op", remote, fb)
		_, _ = gateway.RunOr(ctx, f.gw, "op", remote, fb)
		require.True(t, f.br.Snapshot().IsOpen)

		called := false
		v, err := gateway.RunOr(ctx, f.gw, "op", func(context.Context, backend.Store) (string, error) {
			called = true
			return "remote", nil
		}, fb)
		require.NoError(t, err)
		assert.Equal(t, "fallback", v)
		assert.False(t, called)
	})
}
