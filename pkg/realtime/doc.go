// Package realtime delivers subscription sync events to the entitlement
// store as close to real time as possible, degrading gracefully.
//
// The Manager prefers a persistent push channel scoped to one tenant and
// keeps a periodic poll of the backend's sync marker as the secondary
// path. When the push channel drops, the Manager retries a fixed number of
// times with a fixed backoff; once exhausted it relies on polling for the
// remainder of the session. Only an explicit ManualSync resets the
// reconnection budget.
//
// Events tagged with a foreign tenant are discarded before they can touch
// the store or its caches: the tenant scope is an isolation boundary, not
// just a filter. Duplicate delivery is harmless because the store's
// staleness guard makes reapplying the same subscription a no-op.
//
// Start and Stop are explicit; Stop tears down the push connection, the
// reconnect timers and the poll ticker deterministically so a tenant-scope
// change can never leak state from the previous scope.
package realtime
