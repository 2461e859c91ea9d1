// Package gateway wraps every backend call in the same policy: skip the
// backend when it is unconfigured or latched off, reject while the breaker
// is open, otherwise race the call against an adaptive budget and feed the
// outcome back into the breaker. Fallback data answers whenever the
// backend cannot.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/oggyb/edublin-connect/internal/backend"
	"github.com/oggyb/edublin-connect/internal/breaker"
	"github.com/oggyb/edublin-connect/internal/cache"
	"github.com/oggyb/edublin-connect/internal/config"
	"github.com/oggyb/edublin-connect/internal/db"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/fallback"
	"github.com/oggyb/edublin-connect/internal/localstore"
	"github.com/oggyb/edublin-connect/internal/metrics"
	"github.com/oggyb/edublin-connect/internal/repository"
	"github.com/oggyb/edublin-connect/internal/timeout"
)

// Timeouts are the nominal budgets per kind of call. The breaker shrinks
// them as failures accumulate.
type Timeouts struct {
	Auth         time.Duration // sign-up, sign-in, password reset
	Profile      time.Duration // profile read or write after sign-in
	ProfileQuick time.Duration // current user lookups
	SignOut      time.Duration
	Confirm      time.Duration
	Watch        time.Duration // profile reads inside auth events
	Quick        time.Duration // connectivity probes
	Default      time.Duration // row queries
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Auth:         2000 * time.Millisecond,
		Profile:      1500 * time.Millisecond,
		ProfileQuick: 1000 * time.Millisecond,
		SignOut:      1000 * time.Millisecond,
		Confirm:      1500 * time.Millisecond,
		Watch:        600 * time.Millisecond,
		Quick:        800 * time.Millisecond,
		Default:      5000 * time.Millisecond,
	}
}

// TimeoutsFromConfig scales the defaults from the configured auth budget.
func TimeoutsFromConfig(cfg *config.Config) Timeouts {
	t := DefaultTimeouts()
	if auth := cfg.Timeouts.Auth; auth > 0 {
		t.Auth = auth
		t.Profile = auth * 3 / 4
		t.ProfileQuick = auth / 2
		t.SignOut = auth / 2
		t.Confirm = auth * 3 / 4
		t.Watch = auth * 3 / 10
	}
	if cfg.Timeouts.Quick > 0 {
		t.Quick = cfg.Timeouts.Quick
	}
	if cfg.Timeouts.Default > 0 {
		t.Default = cfg.Timeouts.Default
	}
	return t
}

// Options wires a Gateway. Store nil means the backend is not configured.
type Options struct {
	Store    backend.Store
	Breaker  *breaker.Breaker
	Cache    cache.Cache
	Local    *localstore.Store
	Fallback *fallback.Provider
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Timeouts Timeouts
	// Force starts in forced fallback.
	Force bool
	Now   func() time.Time
}

type Gateway struct {
	store    backend.Store
	br       *breaker.Breaker
	cache    cache.Cache
	local    *localstore.Store
	fb       *fallback.Provider
	m        *metrics.Metrics
	log      *slog.Logger
	t        Timeouts
	now      func() time.Time
	validate *validator.Validate
	flight   singleflight.Group
}

func New(o Options) (*Gateway, error) {
	if o.Local == nil {
		return nil, errors.New("gateway: local store is required")
	}
	g := &Gateway{
		store:    o.Store,
		br:       o.Breaker,
		cache:    o.Cache,
		local:    o.Local,
		fb:       o.Fallback,
		m:        o.Metrics,
		log:      o.Logger,
		t:        o.Timeouts,
		now:      o.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	if g.br == nil {
		g.br = breaker.New(breaker.Config{})
	}
	if g.cache == nil {
		g.cache = cache.NewMemoryCache(cache.DefaultTTL, o.Now)
	}
	if g.fb == nil {
		g.fb = fallback.New()
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.t == (Timeouts{}) {
		g.t = DefaultTimeouts()
	}
	if g.now == nil {
		g.now = time.Now
	}

	g.br.OnTransition(func(from, to breaker.State, snap breaker.Snapshot) {
		g.log.Warn("breaker transition",
			"from", from, "to", to,
			"failures", snap.FailureCount,
			"retry_in", snap.TimeUntilRetry,
			"reason", snap.Reason,
		)
		g.m.Transition(string(to))
		g.m.Breaker(string(to), snap.FailureCount)
	})

	if g.store == nil {
		g.log.Info("backend not configured, serving fallback data")
	}
	if o.Force {
		g.br.ForceFallback("forced by configuration")
	}
	return g, nil
}

// Fallback exposes the provider so services can build substitute records.
func (g *Gateway) Fallback() *fallback.Provider { return g.fb }

func (g *Gateway) Logger() *slog.Logger { return g.log }

// Configured reports whether a backend was wired at all.
func (g *Gateway) Configured() bool { return g.store != nil }

// InFallback reports whether calls skip the backend entirely.
func (g *Gateway) InFallback() bool {
	return g.store == nil || g.br.InFallback()
}

// call runs one remote step under the breaker and the adaptive budget.
// Errors come back classified and stamped with op.
func call[T any](ctx context.Context, g *Gateway, op string, base time.Duration, fn func(ctx context.Context, s backend.Store) (T, error)) (T, error) {
	var zero T
	if g.store == nil {
		return zero, svcErr.New(svcErr.KindNotConfigured, op)
	}
	if err := g.br.Allow(op); err != nil {
		g.m.Call(op, metrics.OutcomeRejected, 0)
		return zero, err
	}

	budget := g.br.Timeout(base)
	start := time.Now()
	v, err := timeout.Race(ctx, op, budget, func(ctx context.Context) (T, error) {
		return fn(ctx, g.store)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		g.br.Record(true)
		g.m.Call(op, metrics.OutcomeSuccess, elapsed)
		return v, nil
	case errors.Is(err, context.Canceled):
		// the caller left; the backend said nothing about its health
		g.br.Release()
		g.m.Call(op, metrics.OutcomeError, elapsed)
		return zero, err
	}

	kind := svcErr.KindOf(err)
	if kind.CountsAsFailure() {
		g.br.Record(false)
	} else {
		g.br.Record(true)
	}
	outcome := metrics.OutcomeError
	if kind == svcErr.KindTimeout {
		outcome = metrics.OutcomeTimeout
	}
	g.m.Call(op, outcome, elapsed)
	g.log.Debug("remote call failed", "op", op, "kind", kind, "budget", budget, "err", err)
	return zero, svcErr.E(kind, op, err)
}

// Run executes a row query through the gateway. In fallback mode the
// provided fallback answers instead; a nil fallback yields KindFallback.
func Run[T any](ctx context.Context, g *Gateway, op string, remote func(ctx context.Context, s backend.Store) (T, error), fallback func() (T, error)) (T, error) {
	if g.InFallback() {
		return substitute(g, op, fallback)
	}
	return call(ctx, g, op, g.t.Default, remote)
}

// RunOr is Run that also substitutes when the remote attempt fails with
// a health error or is rejected by the breaker.
func RunOr[T any](ctx context.Context, g *Gateway, op string, remote func(ctx context.Context, s backend.Store) (T, error), fallback func() (T, error)) (T, error) {
	if g.InFallback() {
		return substitute(g, op, fallback)
	}
	v, err := call(ctx, g, op, g.t.Default, remote)
	if err == nil || fallback == nil {
		return v, err
	}
	switch k := svcErr.KindOf(err); {
	case k.CountsAsFailure(), k == svcErr.KindUnavailable, k == svcErr.KindFallback:
		g.log.Warn("remote call failed, serving fallback data", "op", op, "err", err)
		return substitute(g, op, fallback)
	}
	return v, err
}

func substitute[T any](g *Gateway, op string, fallback func() (T, error)) (T, error) {
	var zero T
	if fallback == nil {
		return zero, svcErr.New(svcErr.KindFallback, op)
	}
	g.m.Call(op, metrics.OutcomeFallback, 0)
	g.m.Substituted(op)
	return fallback()
}

// shared collapses concurrent calls with the same key into one run of fn.
// fn does not inherit the cancellation of whichever caller started it;
// every caller still stops waiting when its own ctx ends.
func shared[T any](ctx context.Context, g *Gateway, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	ch := g.flight.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Status is the operator view of the gateway.
type Status struct {
	Configured bool             `json:"configured"`
	InFallback bool             `json:"in_fallback"`
	Mode       string           `json:"mode"`
	Breaker    breaker.Snapshot `json:"breaker"`
}

func (g *Gateway) Status() Status {
	snap := g.br.Snapshot()
	g.m.Breaker(string(snap.State), snap.FailureCount)
	s := Status{Configured: g.Configured(), InFallback: g.InFallback(), Breaker: snap, Mode: "remote"}
	if s.InFallback {
		s.Mode = "demo"
	}
	return s
}

// ForceFallback latches fallback mode until ResetBreaker.
func (g *Gateway) ForceFallback(ctx context.Context, reason string) {
	g.log.Warn("forcing fallback mode", "reason", reason)
	g.br.ForceFallback(reason)
	g.purgeCache(ctx)
}

// ResetBreaker clears the breaker and its latch.
func (g *Gateway) ResetBreaker(ctx context.Context) {
	g.log.Info("resetting breaker")
	g.br.Reset()
	g.purgeCache(ctx)
}

// ClearFallbackData forgets every locally stored user.
func (g *Gateway) ClearFallbackData(ctx context.Context) error {
	n, err := g.local.ClearCurrentUsers()
	g.purgeCache(ctx)
	if err != nil {
		return fmt.Errorf("clear fallback data: %w", err)
	}
	g.log.Info("fallback data cleared", "keys", n)
	return nil
}

// ConnectionStatus reports whether the backend schema is reachable.
type ConnectionStatus struct {
	IsSetup    bool   `json:"is_setup"`
	NeedsSetup bool   `json:"needs_setup"`
	Error      string `json:"error,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Mode       string `json:"mode"`
	// ShouldUseFallback suggests switching to demo mode.
	ShouldUseFallback bool `json:"should_use_fallback"`
}

// TestConnection probes the backend with the quick budget. Fallback mode
// counts as set up.
func (g *Gateway) TestConnection(ctx context.Context) ConnectionStatus {
	if g.InFallback() {
		return ConnectionStatus{IsSetup: true, Reason: "demo_mode", Mode: "demo", ShouldUseFallback: true}
	}

	_, err := call(ctx, g, "test_connection", g.t.Quick, func(ctx context.Context, s backend.Store) (struct{}, error) {
		return struct{}{}, s.Ping(ctx)
	})
	if err == nil {
		return ConnectionStatus{IsSetup: true, Mode: "remote"}
	}

	snap := g.br.Snapshot()
	st := ConnectionStatus{
		Mode:              "remote",
		ShouldUseFallback: snap.IsOpen || snap.FailureCount >= 2,
	}
	switch svcErr.KindOf(err) {
	case svcErr.KindUnavailable, svcErr.KindFallback:
		st.Error = "Service temporarily unavailable - too many failures"
		st.Reason = "circuit_breaker_open"
	case svcErr.KindNotFound:
		st.Error = "Tables not created"
		st.Reason = "schema_missing"
		st.NeedsSetup = true
	default:
		st.Error = "Database connection failed"
		st.Reason = "connection_failed"
	}
	return st
}

func (g *Gateway) purgeCache(ctx context.Context) {
	if err := g.cache.Purge(ctx); err != nil {
		g.log.Warn("cache purge failed", "err", err)
	}
}

func (g *Gateway) writeCache(ctx context.Context, session string, u *db.User) {
	if session == "" {
		return
	}
	if err := g.cache.Write(ctx, session, u); err != nil {
		g.log.Warn("cache write failed", "err", err)
	}
}

func (g *Gateway) invalidateCache(ctx context.Context, session string) {
	if session == "" {
		return
	}
	if err := g.cache.Invalidate(ctx, session); err != nil {
		g.log.Warn("cache invalidate failed", "err", err)
	}
}

// byID selects one row by primary key.
func byID(id string) repository.Query {
	return repository.Where("id", id)
}

// Maintain drops expired backend sessions and stale cache entries. The
// backend is only touched when the breaker would let a call through.
func (g *Gateway) Maintain(ctx context.Context) (int64, error) {
	if sw, ok := g.cache.(interface{ Sweep() int }); ok {
		if n := sw.Sweep(); n > 0 {
			g.log.Debug("cache swept", "entries", n)
		}
	}
	if g.InFallback() {
		return 0, nil
	}
	return call(ctx, g, "purge_sessions", g.t.Default, func(ctx context.Context, s backend.Store) (int64, error) {
		return s.PurgeExpiredSessions(ctx)
	})
}

// Probing reports whether a background health probe should run now: the
// backend is configured, not latched and the breaker admits a call.
func (g *Gateway) Probing() bool {
	if g.InFallback() {
		return false
	}
	snap := g.br.Snapshot()
	return !snap.IsOpen || snap.TimeUntilRetry <= 0
}
