package optimistic_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolago/entitlements/pkg/entitlement"
	"github.com/scolago/entitlements/pkg/optimistic"
)

func testCatalog() *entitlement.Catalog {
	return &entitlement.Catalog{
		Plans: []entitlement.Plan{
			{ID: "plan-gratuit", Slug: entitlement.TierGratuit, Rank: 1, Status: entitlement.PlanActive},
			{ID: "plan-premium", Slug: entitlement.TierPremium, Rank: 2, Status: entitlement.PlanActive},
			{ID: "plan-pro", Slug: entitlement.TierPro, Rank: 3, Status: entitlement.PlanActive},
		},
		Modules: []entitlement.ModuleDescriptor{
			{ID: "attendance", Slug: "attendance", CategoryID: "vie-scolaire", RequiredPlanRank: 1},
			{ID: "premium-report", Slug: "premium-report", CategoryID: "reporting", RequiredPlanRank: 2},
			{ID: "analytics", Slug: "analytics", CategoryID: "reporting", RequiredPlanRank: 3},
		},
	}
}

func seededStore(t *testing.T, tenantID uuid.UUID, planID string) *entitlement.Store {
	t.Helper()

	store := entitlement.NewStore(testCatalog())
	require.True(t, store.Apply(&entitlement.Subscription{
		ID:        "sub-1",
		TenantID:  tenantID,
		PlanID:    planID,
		Status:    entitlement.StatusActive,
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}))
	return store
}

type changeOutcome struct {
	sub *entitlement.Subscription
	err error
}

// gatedChanger blocks every call until the test feeds an outcome,
// reporting the requested plan on entry.
type gatedChanger struct {
	entered chan string
	proceed chan changeOutcome
}

func newGatedChanger() *gatedChanger {
	return &gatedChanger{
		entered: make(chan string, 8),
		proceed: make(chan changeOutcome, 8),
	}
}

func (c *gatedChanger) ChangePlan(_ context.Context, _ uuid.UUID, planID string) (*entitlement.Subscription, error) {
	c.entered <- planID
	out := <-c.proceed
	return out.sub, out.err
}

type changerFunc func(ctx context.Context, tenantID uuid.UUID, planID string) (*entitlement.Subscription, error)

func (f changerFunc) ChangePlan(ctx context.Context, tenantID uuid.UUID, planID string) (*entitlement.Subscription, error) {
	return f(ctx, tenantID, planID)
}

type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.patterns...)
}

type recordingPoller struct {
	mu      sync.Mutex
	toggles []bool
}

func (r *recordingPoller) SetFastPoll(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toggles = append(r.toggles, enabled)
}

func (r *recordingPoller) calls() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.toggles...)
}

func confirmedSub(tenantID uuid.UUID, planID string) *entitlement.Subscription {
	return &entitlement.Subscription{
		ID:        "sub-2",
		TenantID:  tenantID,
		PlanID:    planID,
		Status:    entitlement.StatusActive,
		UpdatedAt: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
	}
}

func waitEntered(t *testing.T, c *gatedChanger) string {
	t.Helper()

	select {
	case planID := <-c.entered:
		return planID
	case <-time.After(2 * time.Second):
		t.Fatal("changer was never called")
		return ""
	}
}

func TestCoordinatorChangePlan(t *testing.T) {
	t.Parallel()

	t.Run("target plan takes effect before confirmation", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		store := seededStore(t, tenantID, "plan-gratuit")
		require.False(t, store.HasModuleAccess("premium-report"))

		changer := newGatedChanger()
		coord := optimistic.NewCoordinator(optimistic.Config{}, tenantID, store, changer)

		done := make(chan error, 1)
		go func() {
			_, err := coord.ChangePlan(context.Background(), "plan-pro")
			done <- err
		}()

		waitEntered(t, changer)
		assert.True(t, store.HasModuleAccess("premium-report"))
		assert.True(t, store.HasModuleAccess("analytics"))
		assert.Equal(t, optimistic.StateSpeculating, coord.State())
		assert.Equal(t, "plan-gratuit", store.Current().PlanID)

		changer.proceed <- changeOutcome{sub: confirmedSub(tenantID, "plan-pro")}
		require.NoError(t, <-done)

		assert.True(t, store.HasModuleAccess("premium-report"))
		assert.Equal(t, "plan-pro", store.Current().PlanID)
		assert.False(t, store.Speculating())
		assert.Equal(t, optimistic.StateIdle, coord.State())
	})

	t.Run("rejection rolls back to the confirmed plan", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		store := seededStore(t, tenantID, "plan-gratuit")

		changer := newGatedChanger()
		coord := optimistic.NewCoordinator(optimistic.Config{}, tenantID, store, changer)

		done := make(chan error, 1)
		go func() {
			_, err := coord.ChangePlan(context.Background(), "plan-pro")
			done <- err
		}()

		waitEntered(t, changer)
		require.True(t, store.HasModuleAccess("premium-report"))

		cause := errors.New("payment declined")
		changer.proceed <- changeOutcome{err: cause}

		err := <-done
		require.Error(t, err)
		assert.ErrorIs(t, err, optimistic.ErrMutationRejected)
		assert.ErrorIs(t, err, cause)

		assert.False(t, store.HasModuleAccess("premium-report"))
		assert.Equal(t, "plan-gratuit", store.Current().PlanID)
		assert.False(t, store.Speculating())
		assert.Equal(t, optimistic.StateIdle, coord.State())
	})

	t.Run("unknown plan fails without touching the slot", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		store := seededStore(t, tenantID, "plan-gratuit")
		poller := &recordingPoller{}

		calls := 0
		coord := optimistic.NewCoordinator(optimistic.Config{}, tenantID, store,
			changerFunc(func(_ context.Context, id uuid.UUID, planID string) (*entitlement.Subscription, error) {
				calls++
				return confirmedSub(id, planID), nil
			}),
			optimistic.WithFastPoller(poller),
		)

		_, err := coord.ChangePlan(context.Background(), "plan-unknown")
		require.ErrorIs(t, err, entitlement.ErrPlanNotFound)
		assert.Zero(t, calls)
		assert.Empty(t, poller.calls())
		assert.Equal(t, optimistic.StateIdle, coord.State())

		// The slot must be free again.
		sub, err := coord.ChangePlan(context.Background(), "plan-premium")
		require.NoError(t, err)
		assert.Equal(t, "plan-premium", sub.PlanID)
	})

	t.Run("invalidates tenant cache entries around the change", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		store := seededStore(t, tenantID, "plan-gratuit")
		inv := &recordingInvalidator{}

		coord := optimistic.NewCoordinator(optimistic.Config{}, tenantID, store,
			changerFunc(func(_ context.Context, id uuid.UUID, planID string) (*entitlement.Subscription, error) {
				return confirmedSub(id, planID), nil
			}),
			optimistic.WithInvalidator(inv),
		)

		_, err := coord.ChangePlan(context.Background(), "plan-pro")
		require.NoError(t, err)

		calls := inv.calls()
		require.Len(t, calls, 2)
		assert.Equal(t, tenantID.String(), calls[0])
		assert.Equal(t, tenantID.String(), calls[1])
	})

	t.Run("fast poll is held for the duration of the change", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		store := seededStore(t, tenantID, "plan-gratuit")
		poller := &recordingPoller{}

		coord := optimistic.NewCoordinator(optimistic.Config{}, tenantID, store,
			changerFunc(func(_ context.Context, id uuid.UUID, planID string) (*entitlement.Subscription, error) {
				return confirmedSub(id, planID), nil
			}),
			optimistic.WithFastPoller(poller),
		)

		_, err := coord.ChangePlan(context.Background(), "plan-pro")
		require.NoError(t, err)
		assert.Equal(t, []bool{true, false}, poller.calls())
	})
}

func TestCoordinatorQueue(t *testing.T) {
	t.Parallel()

	t.Run("concurrent changes run in arrival order", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		store := seededStore(t, tenantID, "plan-gratuit")

		changer := newGatedChanger()
		coord := optimistic.NewCoordinator(optimistic.Config{QueueSize: 2}, tenantID, store, changer)

		errs := make(chan error, 3)
		go func() {
			_, err := coord.ChangePlan(context.Background(), "plan-premium")
			errs <- err
		}()
		first := waitEntered(t, changer)
		require.Equal(t, "plan-premium", first)

		// Queue two more behind the in-flight change, one at a time so
		// arrival order is deterministic.
		go func() {
			_, err := coord.ChangePlan(context.Background(), "plan-pro")
			errs <- err
		}()
		require.Eventually(t, func() bool { return coord.QueueLength() == 1 },
			2*time.Second, time.Millisecond)

		go func() {
			_, err := coord.ChangePlan(context.Background(), "plan-gratuit")
			errs <- err
		}()
		require.Eventually(t, func() bool { return coord.QueueLength() == 2 },
			2*time.Second, time.Millisecond)

		changer.proceed <- changeOutcome{err: errors.New("declined")}
		require.Equal(t, "plan-pro", waitEntered(t, changer))
		changer.proceed <- changeOutcome{err: errors.New("declined")}
		require.Equal(t, "plan-gratuit", waitEntered(t, changer))
		changer.proceed <- changeOutcome{err: errors.New("declined")}

		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, <-errs, optimistic.ErrMutationRejected)
		}
		assert.Equal(t, 0, coord.QueueLength())
	})

	t.Run("full queue rejects immediately", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		store := seededStore(t, tenantID, "plan-gratuit")

		changer := newGatedChanger()
		coord := optimistic.NewCoordinator(optimistic.Config{QueueSize: -1}, tenantID, store, changer)

		done := make(chan error, 1)
		go func() {
			_, err := coord.ChangePlan(context.Background(), "plan-pro")
			done <- err
		}()
		waitEntered(t, changer)

		_, err := coord.ChangePlan(context.Background(), "plan-premium")
		assert.ErrorIs(t, err, optimistic.ErrChangeInProgress)

		changer.proceed <- changeOutcome{sub: confirmedSub(tenantID, "plan-pro")}
		require.NoError(t, <-done)
	})

	t.Run("cancelled waiter leaves the queue", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		store := seededStore(t, tenantID, "plan-gratuit")

		changer := newGatedChanger()
		coord := optimistic.NewCoordinator(optimistic.Config{QueueSize: 2}, tenantID, store, changer)

		done := make(chan error, 1)
		go func() {
			_, err := coord.ChangePlan(context.Background(), "plan-pro")
			done <- err
		}()
		waitEntered(t, changer)

		ctx, cancel := context.WithCancel(context.Background())
		queued := make(chan error, 1)
		go func() {
			_, err := coord.ChangePlan(ctx, "plan-premium")
			queued <- err
		}()
		require.Eventually(t, func() bool { return coord.QueueLength() == 1 },
			2*time.Second, time.Millisecond)

		cancel()
		assert.ErrorIs(t, <-queued, context.Canceled)
		assert.Equal(t, 0, coord.QueueLength())

		changer.proceed <- changeOutcome{sub: confirmedSub(tenantID, "plan-pro")}
		require.NoError(t, <-done)

		// The cancelled waiter must not have consumed the slot.
		select {
		case planID := <-changer.entered:
			t.Fatalf("unexpected change for %s", planID)
		case <-time.After(50 * time.Millisecond):
		}
	})
}
