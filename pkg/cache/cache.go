package cache

import (
	"context"
	"time"
)

// Key builds a cache key in the shared "cache:{tenant}:{resource}" layout.
// Namespacing by tenant keeps entries from bleeding across tenants on the
// persisted tier, which is shared between sessions of the same origin.
func Key(tenant, resource string) string {
	return "cache:" + tenant + ":" + resource
}

// Tier is one storage layer of the multi-level cache.
//
// Implementations must treat their own failures as misses: Get reports
// ok=false and Set/Delete are best-effort. Expiry is enforced by the
// tier itself; an expired entry is indistinguishable from a missing one.
type Tier interface {
	// Get returns the stored bytes and their expiry if present and not
	// expired. Promotion between tiers keeps the original expiry, so an
	// entry never outlives the window it was written with.
	Get(ctx context.Context, key string) (data []byte, expiresAt time.Time, ok bool)

	// Set stores data until expiresAt.
	Set(ctx context.Context, key string, data []byte, expiresAt time.Time)

	// Delete removes a single key.
	Delete(ctx context.Context, key string)

	// DeleteMatching removes every key containing pattern as a substring.
	DeleteMatching(ctx context.Context, pattern string)

	// Close releases resources held by the tier.
	Close() error
}
