// Package scheduler runs the gateway's background jobs: a periodic
// backend probe that lets a recovered backend close the breaker without
// waiting for user traffic, and a janitor for expired sessions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/oggyb/edublin-connect/internal/config"
	"github.com/oggyb/edublin-connect/internal/gateway"
)

const (
	probeJob   = "backend_probe"
	janitorJob = "session_janitor"
)

type Config struct {
	ProbeInterval   time.Duration
	JanitorInterval time.Duration
}

// ConfigFrom reads the job intervals from cfg.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ProbeInterval:   cfg.Scheduler.ProbeInterval,
		JanitorInterval: cfg.Scheduler.JanitorInterval,
	}
}

type Scheduler struct {
	sched gocron.Scheduler
	gw    *gateway.Gateway
	log   *slog.Logger
	ctx   context.Context

	probes atomic.Int64
	purged atomic.Int64
}

// New registers the jobs without starting them. A zero interval disables
// its job.
func New(ctx context.Context, gw *gateway.Gateway, cfg Config, log *slog.Logger, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Scheduler{sched: sched, gw: gw, log: log, ctx: ctx}

	jobs := []struct {
		name  string
		every time.Duration
		run   func(context.Context)
	}{
		{probeJob, cfg.ProbeInterval, s.Probe},
		{janitorJob, cfg.JanitorInterval, s.Janitor},
	}
	for _, j := range jobs {
		if j.every <= 0 {
			continue
		}
		run := j.run
		_, err := sched.NewJob(
			gocron.DurationJob(j.every),
			gocron.NewTask(func() { run(s.ctx) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler started", "jobs", len(s.sched.Jobs()))
	s.sched.Start()
}

// Shutdown stops the jobs and waits for running ones.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// Probe tests the backend connection when the breaker would let a call
// through. Skipped probes leave the breaker untouched.
func (s *Scheduler) Probe(ctx context.Context) {
	if !s.gw.Probing() {
		return
	}
	s.probes.Add(1)
	st := s.gw.TestConnection(ctx)
	if !st.IsSetup {
		s.log.Warn("backend probe failed", "reason", st.Reason, "error", st.Error)
		return
	}
	s.log.Debug("backend probe ok")
}

// Janitor drops expired sessions and stale cache entries.
func (s *Scheduler) Janitor(ctx context.Context) {
	n, err := s.gw.Maintain(ctx)
	if err != nil {
		s.log.Warn("session purge failed", "err", err)
		return
	}
	if n > 0 {
		s.purged.Add(n)
		s.log.Info("expired sessions purged", "count", n)
	}
}

// Probes is the number of probes that reached the gateway.
func (s *Scheduler) Probes() int64 { return s.probes.Load() }

// Purged is the number of sessions removed so far.
func (s *Scheduler) Purged() int64 { return s.purged.Load() }
