package redis

import (
	"context"
	"fmt"
	"time"

	"coin-wallet-core/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// EntryCache implements ports.EntryCache using Redis. It is the fast-path
// idempotency check in front of the ledger's unique (kind, external_ref)
// constraint; a cache miss always falls through to the database.
type EntryCache struct {
	client *goredis.Client
	prefix string
}

// NewEntryCache creates a new Redis-backed ledger entry cache.
func NewEntryCache(client *goredis.Client) *EntryCache {
	return &EntryCache{
		client: client,
		prefix: "ledger:",
	}
}

func (c *EntryCache) key(kind domain.EntryKind, externalRef string) string {
	return c.prefix + string(kind) + ":" + externalRef
}

// Get retrieves the cached original entry for an idempotency key.
// Returns nil, nil if the key does not exist.
func (c *EntryCache) Get(ctx context.Context, kind domain.EntryKind, externalRef string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(kind, externalRef)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis entry get: %w", err)
	}
	return val, nil
}

// Set stores the serialized entry with TTL.
func (c *EntryCache) Set(ctx context.Context, kind domain.EntryKind, externalRef string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(kind, externalRef), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis entry set: %w", err)
	}
	return nil
}
