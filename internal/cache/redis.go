package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/edublin-connect/internal/config"
	"github.com/oggyb/edublin-connect/internal/db"
)

// RedisCache shares session entries between gateway replicas.
// Expiry is left to Redis, so there is no sweep.
type RedisCache struct {
	Client *redis.Client
	ttl    time.Duration
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{Client: redis.NewClient(opts), ttl: ttl}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// KeyForSession generates the Redis key holding a session's user.
func (c *RedisCache) KeyForSession(sessionID string) string {
	return fmt.Sprintf("session:user:%s", sessionID)
}

// stored wraps the user so a signed-out session (nil user) is still a hit.
type stored struct {
	User *db.User `json:"user"`
}

func (c *RedisCache) Read(ctx context.Context, sessionID string) (*db.User, bool) {
	val, err := c.Client.Get(ctx, c.KeyForSession(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false // cache miss
	} else if err != nil {
		return nil, false
	}

	var s stored
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, false
	}
	return s.User, true
}

func (c *RedisCache) Write(ctx context.Context, sessionID string, user *db.User) error {
	b, err := json.Marshal(stored{User: user})
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	return c.Client.Set(ctx, c.KeyForSession(sessionID), b, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, sessionID string) error {
	return c.Client.Del(ctx, c.KeyForSession(sessionID)).Err()
}

// Purge deletes every session key. SCAN keeps it from blocking the server.
func (c *RedisCache) Purge(ctx context.Context) error {
	iter := c.Client.Scan(ctx, 0, c.KeyForSession("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan session keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}
