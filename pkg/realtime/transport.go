package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scolago/entitlements/pkg/entitlement"
)

// Stream is one live push connection scoped to a tenant. The events
// channel closes when the connection drops; Err then reports the cause.
type Stream interface {
	Events() <-chan entitlement.SyncEvent
	Err() error
	Close() error
}

// Transport establishes push connections. Implementations decode and
// validate wire messages so the Manager only ever sees typed events.
type Transport interface {
	Connect(ctx context.Context, tenantID uuid.UUID) (Stream, error)
}

// Source is the poll-side view of the backing store.
type Source interface {
	// SyncMarker returns the remote subscription's UpdatedAt without
	// fetching the full record.
	SyncMarker(ctx context.Context, tenantID uuid.UUID) (time.Time, error)

	// FetchSubscription returns the authoritative subscription state.
	FetchSubscription(ctx context.Context, tenantID uuid.UUID) (*entitlement.Subscription, error)
}

// Invalidator removes cached entries affected by an applied update.
// *cache.MultiLevel satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, pattern string)
}
