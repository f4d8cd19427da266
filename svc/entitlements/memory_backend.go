package entitlements

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scolago/entitlements/pkg/entitlement"
)

// MemoryBackend is an in-memory Backend for tests and local development.
// Failures can be injected per method group to exercise degraded paths.
type MemoryBackend struct {
	mu            sync.RWMutex
	catalog       *entitlement.Catalog
	subscriptions map[uuid.UUID]entitlement.Subscription
	now           func() time.Time

	fetchErr  error
	changeErr error
}

// MemoryBackendOption configures a MemoryBackend.
type MemoryBackendOption func(*MemoryBackend)

// WithBackendClock injects the time source for ChangePlan timestamps.
func WithBackendClock(now func() time.Time) MemoryBackendOption {
	return func(b *MemoryBackend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewMemoryBackend returns a Backend serving a deep copy of the given
// catalog. Panics if the catalog is nil or holds no plans, matching the
// fail-fast contract of the service constructor.
func NewMemoryBackend(catalog *entitlement.Catalog, opts ...MemoryBackendOption) *MemoryBackend {
	if catalog == nil || len(catalog.Plans) == 0 {
		panic("entitlements: memory backend requires a catalog with at least one plan")
	}

	b := &MemoryBackend{
		catalog:       copyCatalog(catalog),
		subscriptions: make(map[uuid.UUID]entitlement.Subscription),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetSubscription seeds or replaces a tenant's subscription.
func (b *MemoryBackend) SetSubscription(sub *entitlement.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[sub.TenantID] = *sub
}

// SetFetchError makes FetchSubscription and SyncMarker fail with err.
// Pass nil to clear.
func (b *MemoryBackend) SetFetchError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchErr = err
}

// SetChangeError makes ChangePlan fail with err. Pass nil to clear.
func (b *MemoryBackend) SetChangeError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changeErr = err
}

func (b *MemoryBackend) FetchSubscription(_ context.Context, tenantID uuid.UUID) (*entitlement.Subscription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	sub, ok := b.subscriptions[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	return &sub, nil
}

func (b *MemoryBackend) FetchCatalog(_ context.Context) (*entitlement.Catalog, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyCatalog(b.catalog), nil
}

func (b *MemoryBackend) ChangePlan(_ context.Context, tenantID uuid.UUID, planID string) (*entitlement.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.changeErr != nil {
		return nil, b.changeErr
	}
	if _, ok := b.catalog.PlanByID(planID); !ok {
		return nil, fmt.Errorf("%w: %s", entitlement.ErrPlanNotFound, planID)
	}

	sub, ok := b.subscriptions[tenantID]
	if !ok {
		sub = entitlement.Subscription{
			ID:       "sub-" + tenantID.String(),
			TenantID: tenantID,
			Status:   entitlement.StatusActive,
		}
	}
	sub.PlanID = planID
	sub.UpdatedAt = b.now()
	b.subscriptions[tenantID] = sub
	return &sub, nil
}

func (b *MemoryBackend) SyncMarker(_ context.Context, tenantID uuid.UUID) (time.Time, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.fetchErr != nil {
		return time.Time{}, b.fetchErr
	}
	sub, ok := b.subscriptions[tenantID]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	return sub.UpdatedAt, nil
}

// copyCatalog deep copies so callers never mutate backend state.
func copyCatalog(c *entitlement.Catalog) *entitlement.Catalog {
	return &entitlement.Catalog{
		Plans:   slices.Clone(c.Plans),
		Modules: slices.Clone(c.Modules),
	}
}
