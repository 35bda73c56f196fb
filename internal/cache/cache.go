package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is a transient projection of a link held in the cache. It is never
// the source of truth: the persistent store owns the link record and the
// cache only bounds how long a stale value can be served.
type Entry struct {
	Code      string     `json:"code"`
	TargetURL string     `json:"target_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CachedAt  time.Time  `json:"cached_at"`
}

// Expired reports whether the cached link itself has expired. Cache entries
// can outlive a link's expiry boundary within their TTL, so callers must
// check this on every hit rather than trusting entry freshness.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// RedisCache is a strict cache-aside layer in front of the link store,
// keyed by short code. It never fetches from the store on its own; on a
// miss the caller is responsible for the authoritative fetch and the
// subsequent Put.
//
// Every entry carries an independent TTL so that an out-of-band delete on
// another node is bounded by the TTL even without cross-node invalidation.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
	keys      *KeyBuilder
}

func New(client *redis.Client, ttl, opTimeout time.Duration, keys *KeyBuilder) *RedisCache {
	return &RedisCache{
		client:    client,
		ttl:       ttl,
		opTimeout: opTimeout,
		keys:      keys,
	}
}

// Lookup returns the cached entry for code, ErrCacheMiss if none exists, or
// ErrUnavailable if Redis can't be reached within the operation timeout.
func (c *RedisCache) Lookup(ctx context.Context, code string) (*Entry, error) {
	const op = "cache.RedisCache.Lookup"

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.keys.Link(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}

		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	entry := new(Entry)
	if err := json.Unmarshal(data, entry); err != nil {
		// A corrupt entry is as good as no entry.
		return nil, ErrCacheMiss
	}

	return entry, nil
}

// Put stores an entry for code, overwriting any existing one. Last writer
// wins: link targets are immutable, so concurrent writers can only race on
// TTL bookkeeping, never on data correctness.
func (c *RedisCache) Put(ctx context.Context, code, targetURL string, expiresAt *time.Time) error {
	const op = "cache.RedisCache.Put"

	entry := Entry{
		Code:      code,
		TargetURL: targetURL,
		ExpiresAt: expiresAt,
		CachedAt:  time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal entry: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.keys.Link(code), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	return nil
}

// Invalidate removes the entry for code. The deletion path calls it
// synchronously before acknowledging a delete, so no cache entry for a
// deleted code survives past the delete call returning on this node.
func (c *RedisCache) Invalidate(ctx context.Context, code string) error {
	const op = "cache.RedisCache.Invalidate"

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.keys.Link(code)).Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	return nil
}
