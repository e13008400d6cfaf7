// Package cache provides a Redis-backed lookup cache for the redirect hot
// path. The cache is optional: with no client configured every call is a
// miss and the redirect handler falls through to the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"qrstudio/internal/config"
	"qrstudio/internal/types"
)

const keyPrefix = "shortcode:"

// ShortCodeCache caches resolved QR codes by short code. Entries are stored
// as JSON with a TTL; writers invalidate on update and delete.
type ShortCodeCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewShortCodeCache creates the cache from configuration. An empty Redis
// address disables caching; the returned cache is still safe to use.
// Connection failures at startup also degrade to a disabled cache rather
// than failing the boot.
func NewShortCodeCache(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) *ShortCodeCache {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		return &ShortCodeCache{ttl: cfg.TTL, logger: logger}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, short code cache disabled",
			"addr", cfg.Addr,
			"error", err,
		)
		_ = client.Close()
		return &ShortCodeCache{ttl: cfg.TTL, logger: logger}
	}

	return &ShortCodeCache{client: client, ttl: cfg.TTL, logger: logger}
}

// Enabled reports whether a live Redis client backs the cache.
func (c *ShortCodeCache) Enabled() bool {
	return c.client != nil
}

// Get returns the cached QR code for a short code, or (nil, false) on a
// miss. Redis errors are logged and treated as misses.
func (c *ShortCodeCache) Get(ctx context.Context, code string) (*types.QRCode, bool) {
	if c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("short code cache read failed", "code", code, "error", err)
		}
		return nil, false
	}

	var q types.QRCode
	if err := json.Unmarshal(raw, &q); err != nil {
		c.logger.Warn("short code cache entry corrupt", "code", code, "error", err)
		_ = c.client.Del(ctx, keyPrefix+code).Err()
		return nil, false
	}
	return &q, true
}

// Set stores a resolved QR code under its short code. Failures are logged
// and swallowed; the cache is never load-bearing.
func (c *ShortCodeCache) Set(ctx context.Context, q *types.QRCode) {
	if c.client == nil || q.ShortCode == "" {
		return
	}

	raw, err := json.Marshal(q)
	if err != nil {
		c.logger.Warn("failed to encode qr code for cache", "id", q.ID, "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+q.ShortCode, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("short code cache write failed", "code", q.ShortCode, "error", err)
	}
}

// Invalidate drops the cache entry for a short code. Called after updates
// and deletes so redirects never serve a stale destination past the TTL.
func (c *ShortCodeCache) Invalidate(ctx context.Context, code string) {
	if c.client == nil || code == "" {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		c.logger.Warn("short code cache invalidation failed", "code", code, "error", err)
	}
}

// Close releases the underlying Redis client.
func (c *ShortCodeCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
