// Package breaker tracks remote call failures and decides whether the
// gateway may attempt the backend at all.
//
// States: closed (normal), open (rejecting until the cooldown elapses),
// half-open (one probe admitted after the cooldown) and permanent fallback
// (terminal until an explicit Reset).
package breaker

import (
	"sync"
	"time"

	svcErr "github.com/oggyb/edublin-connect/internal/errors"
)

type State string

const (
	StateClosed            State = "closed"
	StateOpen              State = "open"
	StateHalfOpen          State = "half_open"
	StatePermanentFallback State = "permanent_fallback"
)

const (
	timeoutStep     = 300 * time.Millisecond
	timeoutFloor    = 500 * time.Millisecond
	fallbackTimeout = 100 * time.Millisecond
)

// Config holds thresholds. Zero values take the defaults.
type Config struct {
	OpenThreshold      int
	PermanentThreshold int
	Cooldown           time.Duration
	// FailureWindow clears the cumulative count when the last failure is
	// older than the window. Zero disables it.
	FailureWindow time.Duration
	Now           func() time.Time
}

// Snapshot is a point-in-time copy of the breaker state.
type Snapshot struct {
	State             State         `json:"state"`
	FailureCount      int           `json:"failure_count"`
	LastFailureTime   time.Time     `json:"last_failure_time"`
	IsOpen            bool          `json:"is_open"`
	NextAttemptTime   time.Time     `json:"next_attempt_time"`
	TimeUntilRetry    time.Duration `json:"time_until_retry"`
	PermanentFallback bool          `json:"permanent_fallback"`
	Forced            bool          `json:"forced"`
	Reason            string        `json:"reason,omitempty"`
}

// Listener is notified after every state transition.
type Listener func(from, to State, snap Snapshot)

type Breaker struct {
	mu sync.Mutex

	cfg Config

	failureCount      int
	lastFailureTime   time.Time
	isOpen            bool
	nextAttemptTime   time.Time
	permanentFallback bool
	forced            bool
	reason            string
	probing           bool

	listeners []Listener
}

func New(cfg Config) *Breaker {
	if cfg.OpenThreshold <= 0 {
		cfg.OpenThreshold = 2
	}
	if cfg.PermanentThreshold <= 0 {
		cfg.PermanentThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// OnTransition registers a listener. Listeners run outside the lock.
func (b *Breaker) OnTransition(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Allow reports whether a remote attempt may start now. The returned error
// is KindFallback when latched and KindUnavailable while open.
func (b *Breaker) Allow(op string) error {
	b.mu.Lock()
	from := b.stateLocked()

	if b.permanentFallback {
		b.mu.Unlock()
		return svcErr.New(svcErr.KindFallback, op)
	}

	if b.isOpen {
		now := b.cfg.Now()
		if now.Before(b.nextAttemptTime) || b.probing {
			b.mu.Unlock()
			return svcErr.New(svcErr.KindUnavailable, op)
		}
		// half-open: exactly one probe until it reports back
		b.probing = true
	}
	to := b.stateLocked()
	snap, listeners := b.snapshotLocked(), b.listeners
	b.mu.Unlock()

	notify(listeners, from, to, snap)
	return nil
}

// Record feeds the outcome of an admitted attempt back into the breaker.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	from := b.stateLocked()
	now := b.cfg.Now()
	wasProbe := b.probing
	b.probing = false

	if success {
		if !b.permanentFallback {
			if b.failureCount > 0 {
				b.failureCount--
			}
			b.isOpen = false
		}
	} else {
		if b.cfg.FailureWindow > 0 && !b.permanentFallback && !b.lastFailureTime.IsZero() &&
			now.Sub(b.lastFailureTime) > b.cfg.FailureWindow && !b.isOpen {
			b.failureCount = 0
		}
		b.failureCount++
		b.lastFailureTime = now

		switch {
		case b.failureCount >= b.cfg.PermanentThreshold:
			b.permanentFallback = true
			b.isOpen = true
			if b.reason == "" {
				b.reason = "failure threshold reached"
			}
		case b.failureCount >= b.cfg.OpenThreshold || wasProbe:
			b.isOpen = true
			b.nextAttemptTime = now.Add(b.cfg.Cooldown)
		}
	}

	to := b.stateLocked()
	snap, listeners := b.snapshotLocked(), b.listeners
	b.mu.Unlock()

	if from != to {
		notify(listeners, from, to, snap)
	}
}

// Release ends an admitted attempt that produced no verdict, such as a
// call abandoned by its caller. A pending probe slot is freed.
func (b *Breaker) Release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// Timeout returns the adaptive budget for a call whose nominal budget is base.
func (b *Breaker) Timeout(base time.Duration) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.permanentFallback || b.forced {
		return fallbackTimeout
	}
	if b.failureCount > 0 {
		reduced := base - time.Duration(b.failureCount)*timeoutStep
		if reduced < timeoutFloor {
			return timeoutFloor
		}
		return reduced
	}
	return base
}

// ForceFallback latches permanent fallback immediately.
func (b *Breaker) ForceFallback(reason string) {
	b.mu.Lock()
	from := b.stateLocked()
	b.forced = true
	b.permanentFallback = true
	b.isOpen = true
	b.reason = reason
	to := b.stateLocked()
	snap, listeners := b.snapshotLocked(), b.listeners
	b.mu.Unlock()

	if from != to {
		notify(listeners, from, to, snap)
	}
}

// Reset is the operator action that clears every counter and the latch.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.stateLocked()
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
	b.isOpen = false
	b.nextAttemptTime = time.Time{}
	b.permanentFallback = false
	b.forced = false
	b.reason = ""
	b.probing = false
	to := b.stateLocked()
	snap, listeners := b.snapshotLocked(), b.listeners
	b.mu.Unlock()

	if from != to {
		notify(listeners, from, to, snap)
	}
}

// InFallback reports whether the latch is set.
func (b *Breaker) InFallback() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.permanentFallback
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Breaker) snapshotLocked() Snapshot {
	s := Snapshot{
		State:             b.stateLocked(),
		FailureCount:      b.failureCount,
		LastFailureTime:   b.lastFailureTime,
		IsOpen:            b.isOpen,
		NextAttemptTime:   b.nextAttemptTime,
		PermanentFallback: b.permanentFallback,
		Forced:            b.forced,
		Reason:            b.reason,
	}
	if b.isOpen && !b.permanentFallback {
		if d := b.nextAttemptTime.Sub(b.cfg.Now()); d > 0 {
			s.TimeUntilRetry = d
		}
	}
	return s
}

func (b *Breaker) stateLocked() State {
	switch {
	case b.permanentFallback:
		return StatePermanentFallback
	case b.isOpen && (b.probing || !b.cfg.Now().Before(b.nextAttemptTime)):
		return StateHalfOpen
	case b.isOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

func notify(listeners []Listener, from, to State, snap Snapshot) {
	if from == to {
		return
	}
	for _, l := range listeners {
		l(from, to, snap)
	}
}
