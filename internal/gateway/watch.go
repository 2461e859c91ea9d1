package gateway

import (
	"context"
	"sync"

	"github.com/oggyb/edublin-connect/internal/backend"
	"github.com/oggyb/edublin-connect/internal/db"
)

const watchBuffer = 16

// OnAuthStateChange reports the user of session to fn once before it
// returns, then again after every backend auth event concerning that user.
// fn(nil) means signed out. Events are delivered in order from a single
// goroutine until ctx ends or stop is called.
//
// In fallback mode, or while the breaker is open, only the initial report
// is made and no subscription is opened.
func (g *Gateway) OnAuthStateChange(ctx context.Context, session string, fn func(*db.User)) (stop func()) {
	noop := func() {}

	if g.InFallback() {
		u, err := g.localUser(session)
		if err != nil {
			g.log.Warn("read local user failed", "err", err)
		}
		g.writeCache(ctx, session, u)
		fn(u)
		return noop
	}

	if g.br.Snapshot().IsOpen {
		u, _ := g.cache.Read(ctx, session)
		fn(u)
		return noop
	}

	initial, _ := g.CurrentUser(ctx, session)
	if initial == nil {
		fn(nil)
		return noop
	}
	userID := initial.ID

	events := make(chan backend.AuthEvent, watchBuffer)
	unsubscribe := g.store.OnAuthStateChange(func(ev backend.AuthEvent) {
		if !concerns(ev, session, userID) {
			return
		}
		select {
		case events <- ev:
		default:
			g.log.Warn("auth watcher lagging, event dropped", "type", ev.Type, "user_id", userID)
		}
	})
	// the subscription is live before the initial report
	fn(initial)

	done := make(chan struct{})
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case ev := <-events:
				if !g.deliver(ctx, session, ev, fn) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// deliver handles one event and reports whether watching should go on.
func (g *Gateway) deliver(ctx context.Context, session string, ev backend.AuthEvent, fn func(*db.User)) bool {
	if ev.Type == backend.EventSignedOut {
		if ev.Session == nil || ev.Session.AccessToken != session {
			// another session of the same user
			return true
		}
		g.invalidateCache(ctx, session)
		fn(nil)
		return false
	}
	if ev.User == nil {
		return true
	}

	var u db.User
	if g.InFallback() || g.br.Snapshot().IsOpen {
		u = g.fb.MinimalUser(ev.User, "")
	} else {
		u = g.loadProfile(ctx, OpWatch, g.t.Watch, ev.User, "", false)
	}
	g.writeCache(ctx, session, &u)
	fn(&u)
	return true
}

func concerns(ev backend.AuthEvent, session, userID string) bool {
	if ev.Session != nil && (ev.Session.AccessToken == session || ev.Session.UserID == userID) {
		return true
	}
	return ev.User != nil && ev.User.ID == userID
}
