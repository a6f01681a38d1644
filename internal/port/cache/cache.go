// Package cache defines the port interface for key-value caching.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-value cache. Implementations may ignore the per-entry TTL
// when the backing store only supports bucket-level expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
