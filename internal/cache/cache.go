// Package cache keeps the current user of a session for a short TTL so
// repeated lookups do not reach the backend.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oggyb/edublin-connect/internal/config"
	"github.com/oggyb/edublin-connect/internal/db"
)

// DefaultTTL matches how long a user record stays fresh.
const DefaultTTL = 10 * time.Second

// Cache stores one user record per session. A nil user is a valid entry
// meaning "known to be signed out".
type Cache interface {
	Read(ctx context.Context, sessionID string) (*db.User, bool)
	Write(ctx context.Context, sessionID string, user *db.User) error
	Invalidate(ctx context.Context, sessionID string) error
	// Purge drops every session.
	Purge(ctx context.Context) error
}

// New picks the implementation named by CACHE_DRIVER.
func New(cfg *config.Config) (Cache, error) {
	switch cfg.Cache.Driver {
	case "", "memory":
		return NewMemoryCache(cfg.Cache.TTL, nil), nil
	case "redis":
		return NewRedisCache(cfg), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

type entry struct {
	user *db.User
	at   time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// NewMemoryCache builds a cache. A nil clock means time.Now.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{ttl: ttl, now: now, entries: make(map[string]entry)}
}

func (c *MemoryCache) Read(_ context.Context, sessionID string) (*db.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sessionID]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.at) >= c.ttl {
		delete(c.entries, sessionID)
		return nil, false
	}
	return e.user.Clone(), true
}

func (c *MemoryCache) Write(_ context.Context, sessionID string, user *db.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = entry{user: user.Clone(), at: c.now()}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	return nil
}

func (c *MemoryCache) Purge(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.at) >= c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
