package cache

import (
	"context"
	"time"
)

// Cache is the key-value collaborator used for route bindings, prefix sets
// and TPS counters. Entries expire after their TTL; Delete invalidates
// explicitly. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
