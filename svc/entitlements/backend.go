package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scolago/entitlements/pkg/entitlement"
)

// Backend is the system of record for subscriptions and the catalog.
// It is an external collaborator: the engine never persists subscription
// state itself, it only mirrors what the backend confirms.
//
// Backend's method set covers realtime.Source and optimistic.Changer, so
// one implementation feeds both the sync channel and the coordinator.
type Backend interface {
	// FetchSubscription returns the tenant's authoritative subscription.
	FetchSubscription(ctx context.Context, tenantID uuid.UUID) (*entitlement.Subscription, error)

	// FetchCatalog returns the full plan/module catalog.
	FetchCatalog(ctx context.Context) (*entitlement.Catalog, error)

	// ChangePlan moves the tenant to the given plan and returns the
	// confirmed subscription. An error means the change was rejected and
	// nothing was persisted.
	ChangePlan(ctx context.Context, tenantID uuid.UUID, planID string) (*entitlement.Subscription, error)

	// SyncMarker returns the subscription's UpdatedAt without the full
	// record. Pollers compare it against local state to detect drift.
	SyncMarker(ctx context.Context, tenantID uuid.UUID) (time.Time, error)
}
