package realtime_test

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
	"github.com/scolago/entitlements/pkg/realtime"
)

func testCatalog() *entitlement.Catalog {
	return &entitlement.Catalog{
		Plans: []entitlement.Plan{
			{ID: "plan-gratuit", Slug: entitlement.TierGratuit, Rank: 1, Status: entitlement.PlanActive},
			{ID: "plan-pro", Slug: entitlement.TierPro, Rank: 3, Status: entitlement.PlanActive},
		},
		Modules: []entitlement.ModuleDescriptor{
			{ID: "attendance", CategoryID: "vie-scolaire", RequiredPlanRank: 1},
			{ID: "premium-report", CategoryID: "reporting", RequiredPlanRank: 2},
		},
	}
}

// fakeStream hands the test direct control over the event feed. Closing
// the events channel simulates a dropped connection.
type fakeStream struct {
	events    chan entitlement.SyncEvent
	err       error
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan entitlement.SyncEvent, 16)}
}

func (s *fakeStream) Events() <-chan entitlement.SyncEvent { return s.events }
func (s *fakeStream) Err() error                           { return s.err }
func (s *fakeStream) Close() error                         { return nil }

func (s *fakeStream) drop() {
	s.closeOnce.Do(func() { close(s.events) })
}

// fakeTransport scripts Connect outcomes and records every attempt.
type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	next    func() (realtime.Stream, error)
	streams chan *fakeStream
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{streams: make(chan *fakeStream, 16)}
}

func (t *fakeTransport) Connect(_ context.Context, _ uuid.UUID) (realtime.Stream, error) {
	t.mu.Lock()
	t.calls++
	next := t.next
	t.mu.Unlock()

	if next != nil {
		return next()
	}
	s := newFakeStream()
	t.streams <- s
	return s, nil
}

func (t *fakeTransport) connectCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *fakeTransport) failAlways(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next = func() (realtime.Stream, error) { return nil, err }
}

// fakeSource scripts the poll-side backend.
type fakeSource struct {
	mu         sync.Mutex
	marker     time.Time
	sub        *entitlement.Subscription
	markerErr  error
	fetchErr   error
	fetchCalls int
}

func (s *fakeSource) SyncMarker(context.Context, uuid.UUID) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker, s.markerErr
}

func (s *fakeSource) FetchSubscription(context.Context, uuid.UUID) (*entitlement.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.sub, nil
}

func (s *fakeSource) set(sub *entitlement.Subscription, marker time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = sub
	s.marker = marker
}

func (s *fakeSource) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

// recordingInvalidator records invalidation patterns.
type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.patterns)
}

func (r *recordingInvalidator) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.patterns) == 0 {
		return ""
	}
	return r.patterns[len(r.patterns)-1]
}

func fastConfig() realtime.Config {
	return realtime.Config{
		PollInterval:      time.Hour, // poll disabled unless a test wants it
		FastPollInterval:  time.Hour,
		ReconnectAttempts: 5,
		ReconnectBackoff:  time.Millisecond,
	}
}

func startManager(t *testing.T, m *realtime.Manager) {
	t.Helper()
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
}

func TestManagerPushDelivery(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("subscription event reaches the store and invalidates caches", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		transport := newFakeTransport()
		inv := &recordingInvalidator{}
		m := realtime.NewManager(fastConfig(), tenantID, store, &fakeSource{},
			realtime.WithTransport(transport), realtime.WithInvalidator(inv))
		startManager(t, m)

		stream := <-transport.streams
		sub := entitlement.Subscription{
			ID: "sub-1", TenantID: tenantID, PlanID: "plan-pro",
			Status: entitlement.StatusActive, UpdatedAt: base,
		}
		stream.events <- entitlement.NewSubscriptionUpdated(tenantID, base, sub)

		require.Eventually(t, func() bool { return store.Current() != nil }, time.Second, time.Millisecond)
		assert.Equal(t, "plan-pro", store.Current().PlanID)
		assert.Eventually(t, func() bool { return inv.count() == 1 }, time.Second, time.Millisecond)
		assert.Equal(t, tenantID.String(), inv.last())
		assert.Equal(t, realtime.StatusLive, m.Status())
	})

	t.Run("duplicate delivery is idempotent", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		transport := newFakeTransport()
		m := realtime.NewManager(fastConfig(), tenantID, store, &fakeSource{},
			realtime.WithTransport(transport))
		startManager(t, m)

		stream := <-transport.streams
		sub := entitlement.Subscription{
			ID: "sub-1", TenantID: tenantID, PlanID: "plan-pro",
			Status: entitlement.StatusActive, UpdatedAt: base,
		}
		ev := entitlement.NewSubscriptionUpdated(tenantID, base, sub)
		stream.events <- ev
		stream.events <- ev

		require.Eventually(t, func() bool { return store.Current() != nil }, time.Second, time.Millisecond)
		first := store.Current()
		// Let the second delivery land, then compare.
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, first, store.Current())
	})

	t.Run("foreign tenant events never touch store or caches", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		transport := newFakeTransport()
		inv := &recordingInvalidator{}
		m := realtime.NewManager(fastConfig(), tenantID, store, &fakeSource{},
			realtime.WithTransport(transport), realtime.WithInvalidator(inv))
		startManager(t, m)

		stream := <-transport.streams
		otherTenant := uuid.New()
		sub := entitlement.Subscription{
			ID: "sub-x", TenantID: otherTenant, PlanID: "plan-pro",
			Status: entitlement.StatusActive, UpdatedAt: base,
		}
		stream.events <- entitlement.NewSubscriptionUpdated(otherTenant, base, sub)
		stream.events <- entitlement.NewModulesUpdated(otherTenant, base, nil)

		time.Sleep(20 * time.Millisecond)
		assert.Nil(t, store.Current())
		assert.Zero(t, inv.count())
	})

	t.Run("planChanged triggers an authoritative refetch", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		transport := newFakeTransport()
		source := &fakeSource{}
		source.set(&entitlement.Subscription{
			ID: "sub-1", TenantID: tenantID, PlanID: "plan-pro",
			Status: entitlement.StatusActive, UpdatedAt: base,
		}, base)
		m := realtime.NewManager(fastConfig(), tenantID, store, source,
			realtime.WithTransport(transport))
		startManager(t, m)

		stream := <-transport.streams
		stream.events <- entitlement.NewPlanChanged(tenantID, base, "plan-pro")

		require.Eventually(t, func() bool { return store.Current() != nil }, time.Second, time.Millisecond)
		assert.Equal(t, "plan-pro", store.Current().PlanID)
		assert.Equal(t, 1, source.fetches())
	})

	t.Run("modulesUpdated swaps the module catalog", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		store.Apply(&entitlement.Subscription{
			ID: "sub-1", TenantID: tenantID, PlanID: "plan-gratuit",
			Status: entitlement.StatusActive, UpdatedAt: base,
		})
		transport := newFakeTransport()
		m := realtime.NewManager(fastConfig(), tenantID, store, &fakeSource{},
			realtime.WithTransport(transport))
		startManager(t, m)

		stream := <-transport.streams
		stream.events <- entitlement.NewModulesUpdated(tenantID, base, []entitlement.ModuleDescriptor{
			{ID: "premium-report", CategoryID: "reporting", RequiredPlanRank: 1},
		})

		assert.Eventually(t, func() bool {
			return store.HasModuleAccess("premium-report")
		}, time.Second, time.Millisecond)
	})
}

func TestManagerReconnectPolicy(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	t.Run("falls back to polling after the reconnection budget", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		transport := newFakeTransport()
		transport.failAlways(errors.New("connection refused"))
		m := realtime.NewManager(fastConfig(), tenantID, store, &fakeSource{},
			realtime.WithTransport(transport))
		startManager(t, m)

		require.Eventually(t, func() bool {
			return m.Status() == realtime.StatusPollingOnly
		}, time.Second, time.Millisecond)
		assert.Equal(t, 5, transport.connectCalls())

		// The budget is spent: no further attempts for the session.
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 5, transport.connectCalls())
	})

	t.Run("repeated stream drops count against the budget", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		transport := newFakeTransport()
		m := realtime.NewManager(fastConfig(), tenantID, store, &fakeSource{},
			realtime.WithTransport(transport))
		startManager(t, m)

		for i := 0; i < 5; i++ {
			stream := <-transport.streams
			stream.drop()
		}

		require.Eventually(t, func() bool {
			return m.Status() == realtime.StatusPollingOnly
		}, time.Second, time.Millisecond)
		assert.Equal(t, 5, transport.connectCalls())
	})

	t.Run("manual sync resets the budget and revives push", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		transport := newFakeTransport()
		transport.failAlways(errors.New("connection refused"))
		source := &fakeSource{}
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		source.set(&entitlement.Subscription{
			ID: "sub-1", TenantID: tenantID, PlanID: "plan-gratuit",
			Status: entitlement.StatusActive, UpdatedAt: base,
		}, base)
		m := realtime.NewManager(fastConfig(), tenantID, store, source,
			realtime.WithTransport(transport))
		startManager(t, m)

		require.Eventually(t, func() bool {
			return m.Status() == realtime.StatusPollingOnly
		}, time.Second, time.Millisecond)
		exhaustedCalls := transport.connectCalls()

		require.NoError(t, m.ManualSync(context.Background()))

		// Forced refetch landed.
		require.NotNil(t, store.Current())
		assert.Equal(t, "plan-gratuit", store.Current().PlanID)

		// Push is trying again.
		assert.Eventually(t, func() bool {
			return transport.connectCalls() > exhaustedCalls
		}, time.Second, time.Millisecond)
	})
}

func TestManagerPolling(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("newer remote marker triggers refetch", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		source := &fakeSource{}
		source.set(&entitlement.Subscription{
			ID: "sub-1", TenantID: tenantID, PlanID: "plan-pro",
			Status: entitlement.StatusActive, UpdatedAt: base,
		}, base)

		cfg := fastConfig()
		cfg.PollInterval = 5 * time.Millisecond
		m := realtime.NewManager(cfg, tenantID, store, source)
		startManager(t, m)

		assert.Equal(t, realtime.StatusPollingOnly, m.Status())
		require.Eventually(t, func() bool { return store.Current() != nil }, time.Second, time.Millisecond)
		assert.Equal(t, "plan-pro", store.Current().PlanID)
	})

	t.Run("stale marker does not refetch", func(t *testing.T) {
		t.Parallel()

		clockNow := base.Add(time.Hour)
		store := entitlement.NewStore(testCatalog(),
			entitlement.WithClock(func() time.Time { return clockNow }))
		store.Apply(&entitlement.Subscription{
			ID: "sub-1", TenantID: tenantID, PlanID: "plan-pro",
			Status: entitlement.StatusActive, UpdatedAt: base,
		})

		source := &fakeSource{}
		source.set(nil, base.Add(-time.Hour)) // remote older than lastSyncedAt

		cfg := fastConfig()
		cfg.PollInterval = 5 * time.Millisecond
		m := realtime.NewManager(cfg, tenantID, store, source)
		startManager(t, m)

		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, source.fetches())
	})

	t.Run("marker errors are tolerated", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewStore(testCatalog())
		source := &fakeSource{markerErr: errors.New("network down")}

		cfg := fastConfig()
		cfg.PollInterval = 5 * time.Millisecond
		m := realtime.NewManager(cfg, tenantID, store, source)
		startManager(t, m)

		time.Sleep(30 * time.Millisecond)
		assert.Zero(t, source.fetches())
		assert.Equal(t, realtime.StatusPollingOnly, m.Status())
	})
}

func TestManagerLifecycle(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	t.Run("double start is rejected", func(t *testing.T) {
		t.Parallel()

		m := realtime.NewManager(fastConfig(), tenantID, entitlement.NewStore(testCatalog()), &fakeSource{})
		require.NoError(t, m.Start(context.Background()))
		defer m.Stop()

		assert.ErrorIs(t, m.Start(context.Background()), realtime.ErrAlreadyRunning)
	})

	t.Run("stop is idempotent and final", func(t *testing.T) {
		t.Parallel()

		transport := newFakeTransport()
		m := realtime.NewManager(fastConfig(), tenantID, entitlement.NewStore(testCatalog()), &fakeSource{},
			realtime.WithTransport(transport))
		require.NoError(t, m.Start(context.Background()))

		<-transport.streams
		m.Stop()
		m.Stop()
		assert.Equal(t, realtime.StatusStopped, m.Status())

		// A stopped manager never reconnects.
		calls := transport.connectCalls()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, calls, transport.connectCalls())
	})

	t.Run("manual sync requires a running manager", func(t *testing.T) {
		t.Parallel()

		m := realtime.NewManager(fastConfig(), tenantID, entitlement.NewStore(testCatalog()), &fakeSource{})
		assert.ErrorIs(t, m.ManualSync(context.Background()), realtime.ErrNotRunning)
	})
}
