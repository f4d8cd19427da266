// Package optimistic coordinates user-initiated plan changes.
//
// A change is applied speculatively before the backend confirms it: the
// store's effective plan switches to the target immediately, tenant caches
// are invalidated, and dependent readers see the new access set without
// waiting on the network. Confirmation makes the state permanent; failure
// rolls the store back to the last confirmed subscription and re-invalidates
// so readers revert.
//
// Each change-attempt walks an explicit state machine,
//
//	Idle -> Speculating -> {Confirmed | RolledBack} -> Idle
//
// driven by plain function calls, with no UI framework involved. Only one
// attempt may be speculating per tenant at a time; concurrent requests
// queue behind the in-flight one in arrival order, and a full queue is
// rejected with ErrChangeInProgress rather than silently dropped.
package optimistic
