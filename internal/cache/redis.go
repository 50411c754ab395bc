// Package cache keeps global feed pages in Redis for a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix     = "yatube:feed:index"
	generationKey = keyPrefix + ":gen"
)

// FeedCache stores global feed pages. Pages written before the last
// Invalidate are never served again; the TTL bounds staleness otherwise.
type FeedCache struct {
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewFeedCache(client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *FeedCache {
	return &FeedCache{client: client, ttl: ttl, log: log}
}

// Connect dials Redis and pings it once.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "connecting to redis at %s", addr)
	}
	return client, nil
}

func (c *FeedCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func pageKey(gen int64, page int) string {
	return fmt.Sprintf("%s:v%d:page:%d", keyPrefix, gen, page)
}

// Load fills dst with the cached page and reports whether it was found. It
// also returns the generation it looked in; a page built after a miss must be
// stored under that generation so an Invalidate in between orphans it. A
// negative generation means the cache is unavailable.
func (c *FeedCache) Load(ctx context.Context, page int, dst any) (int64, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Feed cache generation lookup failed")
		return -1, false
	}

	raw, err := c.client.Get(ctx, pageKey(gen, page)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).Warn("Feed cache read failed")
		}
		return gen, false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.WithError(err).Warn("Feed cache entry is corrupt")
		return gen, false
	}
	return gen, true
}

// Store writes a page under gen, the generation returned by the Load that
// missed.
func (c *FeedCache) Store(ctx context.Context, gen int64, page int, v any) {
	if gen < 0 {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).Warn("Feed cache encode failed")
		return
	}

	if err := c.client.Set(ctx, pageKey(gen, page), raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("Feed cache write failed")
	}
}

// Invalidate orphans every cached page by bumping the generation counter.
func (c *FeedCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		c.log.WithError(err).Warn("Feed cache invalidation failed")
	}
}
