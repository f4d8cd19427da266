// Package entitlement keeps a tenant's feature access consistent with its
// active subscription plan.
//
// The package owns three things: the domain model (plans, subscriptions,
// module catalog), a pure access evaluator that turns a plan and a catalog
// into per-module access decisions, and the Store, the single source of
// truth for the currently effective subscription.
//
// # Store
//
// The Store serializes every subscription update through one mutex and
// resolves concurrent deliveries purely by the subscription's UpdatedAt
// timestamp: an update older than the one already held is silently dropped.
// This makes the Store tolerant of out-of-order delivery from independent
// channels (push stream, poll loop, user-initiated mutations) without any
// coordination between them.
//
//	store := entitlement.NewStore(catalog)
//	unsubscribe := store.Subscribe(func() {
//		// re-read access decisions
//	})
//	defer unsubscribe()
//
//	store.Apply(sub)                         // accepted iff not stale
//	ok := store.HasModuleAccess("reports")   // evaluated against the effective plan
//
// # Speculation
//
// A plan change can be applied speculatively before the backend confirms it.
// Speculation is an overlay on the effective plan only: the confirmed
// subscription and its timestamp are untouched, so rolling back is nothing
// more than dropping the overlay.
//
// # Events
//
// SyncEvent is a tagged union decoded at the channel boundary; each variant
// carries its own typed payload. See DecodeSyncEvent.
package entitlement
