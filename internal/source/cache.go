package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachingSource decorates a DataSource with a Redis cache of raw payloads.
// Redis failures never fail a fetch; they only cost a trip to the inner source.
type CachingSource struct {
	inner     DataSource
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCachingSource decorates inner with Redis caching.
// If ttl is 0, it defaults to 24 hours. If namespace is empty, it uses "intraday".
func NewCachingSource(rdb *redis.Client, ttl time.Duration, inner DataSource, namespace string) *CachingSource {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if namespace == "" {
		namespace = "intraday"
	}
	return &CachingSource{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// NewRedisClient connects to addr and verifies the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection to %s failed: %w", addr, err)
	}
	slog.Info("redis connection successful", "address", addr)
	return rdb, nil
}

// Name returns the source name
func (c *CachingSource) Name() string { return "cached-" + c.inner.Name() }

// Fetch returns the cached payload for rawURL, falling back to the inner source.
func (c *CachingSource) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	if c.rdb == nil {
		return c.inner.Fetch(ctx, rawURL)
	}

	key, err := c.cacheKey(rawURL)
	if err != nil {
		return nil, err
	}

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		if p, err := DecodePayload(b); err == nil && p.HasTimeSeries() {
			slog.Debug("payload cache hit", "key", key)
			return p, nil
		}
		// corrupted or non-data entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	p, err := c.inner.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if !p.HasTimeSeries() {
		slog.Debug("not caching payload without time series", "key", key)
		return p, nil
	}
	if b, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			slog.Warn("failed to cache payload", "key", key, "error", err)
		}
	}
	return p, nil
}

// cacheKey builds the key from the canonical query with the API key removed.
func (c *CachingSource) cacheKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Del("apikey")
	return fmt.Sprintf("%s:%s%s?%s", c.namespace, u.Host, u.Path, q.Encode()), nil
}
