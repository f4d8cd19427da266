// Package cache provides the two-tier cache used for entitlement data:
// a process-local memory tier in front of a shared persisted tier (Redis).
//
// The persisted tier is a warm-start optimization only and is never treated
// as authoritative beyond an entry's TTL. Every entry is regenerable from
// the backing store, which is why tier failures (quota, corruption, network)
// are swallowed as cache misses instead of being surfaced as errors.
//
//	ml := cache.NewMultiLevel(cache.NewMemoryTier(ctx), cache.NewRedisTier(client))
//	data, err := ml.Get(ctx, "cache:"+tenantID+":modules", 5*time.Minute, fetchModules)
//
// Invalidation is substring-based on both tiers, which lets a plan change
// drop every entry keyed by a tenant or plan ID in one call:
//
//	ml.Invalidate(ctx, tenantID.String())
package cache
