package entitlement

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/scolago/entitlements/pkg/logger"
)

// Listener is notified after every change to the store's effective state:
// an accepted subscription update, a speculation begin/end, or a catalog
// swap. Listeners are invoked synchronously in registration order and are
// expected to re-read whatever they need from the store.
type Listener func()

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock injects the time source used for LastSyncedAt stamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger injects the logger used for staleness rejections.
func WithLogger(log *slog.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Store is the single source of truth for the currently effective
// subscription and the module catalog. All update paths (push channel,
// poll loop, user-initiated mutations) funnel into Apply, which resolves
// concurrent deliveries purely by the subscription's UpdatedAt timestamp.
type Store struct {
	mu           sync.Mutex
	catalog      *Catalog
	current      *Subscription
	speculative  *Plan
	lastSyncedAt time.Time
	listeners    []listenerEntry
	nextID       uint64
	now          func() time.Time
	log          *slog.Logger
}

// NewStore creates a Store over the given catalog.
// Panics on a nil catalog to fail fast during initialization.
func NewStore(catalog *Catalog, opts ...StoreOption) *Store {
	if catalog == nil {
		panic("entitlement: catalog is required")
	}
	s := &Store{
		catalog: catalog.clone(),
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns a copy of the confirmed subscription, or nil if none has
// been applied yet. Speculation does not change what Current returns.
func (s *Store) Current() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// LastSyncedAt returns when the store last accepted an update.
func (s *Store) LastSyncedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncedAt
}

// Apply installs a new confirmed subscription. The update is accepted only
// if it is not older than the one already held; a stale update is a silent
// no-op logged at debug level, never an error, to tolerate out-of-order
// delivery from concurrent channels. Returns whether the update was
// accepted. Listeners are notified on acceptance.
func (s *Store) Apply(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	s.mu.Lock()
	if s.current != nil && sub.UpdatedAt.Before(s.current.UpdatedAt) {
		held := s.current.UpdatedAt
		s.mu.Unlock()
		s.log.Debug("stale subscription update rejected",
			logger.TenantID(sub.TenantID.String()),
			slog.Time("incoming", sub.UpdatedAt),
			slog.Time("held", held),
		)
		return false
	}
	s.current = sub.clone()
	s.lastSyncedAt = s.now()
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners)
	return true
}

// BeginSpeculation overlays the effective plan with the target plan before
// the backend has confirmed a change. The confirmed subscription and the
// staleness guard are untouched. Only one speculation may be active at a
// time.
func (s *Store) BeginSpeculation(planID string) error {
	s.mu.Lock()
	if s.speculative != nil {
		s.mu.Unlock()
		return ErrSpeculationInProgress
	}
	plan, ok := s.catalog.PlanByID(planID)
	if !ok {
		s.mu.Unlock()
		return ErrPlanNotFound
	}
	s.speculative = &plan
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners)
	return nil
}

// EndSpeculation drops the speculative overlay, restoring access decisions
// to the last confirmed subscription. A no-op when nothing is speculating.
func (s *Store) EndSpeculation() {
	s.mu.Lock()
	if s.speculative == nil {
		s.mu.Unlock()
		return
	}
	s.speculative = nil
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners)
}

// Speculating reports whether a speculative overlay is active.
func (s *Store) Speculating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speculative != nil
}

// EffectivePlan returns the plan access decisions are computed from: the
// speculative overlay if one is active, otherwise the confirmed
// subscription's plan. Returns false when no plan is effective.
func (s *Store) EffectivePlan() (Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectivePlanLocked()
}

func (s *Store) effectivePlanLocked() (Plan, bool) {
	if s.speculative != nil {
		return *s.speculative, true
	}
	if s.current == nil {
		return Plan{}, false
	}
	return s.catalog.PlanByID(s.current.PlanID)
}

// HasModuleAccess reports whether the effective plan grants access to a
// module. Fails closed: no subscription, unknown plan, or unknown module
// all yield false.
func (s *Store) HasModuleAccess(moduleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.effectivePlanLocked()
	if !ok {
		return false
	}
	mod, ok := s.catalog.Module(moduleID)
	if !ok {
		return false
	}
	return plan.Allows(mod.RequiredPlanRank)
}

// HasCategoryAccess reports whether the effective plan grants access to at
// least one module in the category.
func (s *Store) HasCategoryAccess(categoryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.effectivePlanLocked()
	if !ok {
		return false
	}
	for _, mod := range s.catalog.ModulesInCategory(categoryID) {
		if plan.Allows(mod.RequiredPlanRank) {
			return true
		}
	}
	return false
}

// Decisions returns the full access decision set for the effective plan,
// or nil when no plan is effective.
func (s *Store) Decisions() []AccessDecision {
	s.mu.Lock()
	plan, ok := s.effectivePlanLocked()
	modules := s.catalog.Modules
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return Evaluate(plan, modules)
}

// Catalog returns a copy of the current catalog.
func (s *Store) Catalog() *Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.clone()
}

// SetCatalog replaces the whole catalog, typically after a full refetch.
func (s *Store) SetCatalog(catalog *Catalog) {
	if catalog == nil {
		return
	}
	s.mu.Lock()
	s.catalog = catalog.clone()
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners)
}

// SetModules replaces the module list, keeping plans, typically in response
// to a modulesUpdated sync event.
func (s *Store) SetModules(modules []ModuleDescriptor) {
	s.mu.Lock()
	next := s.catalog.clone()
	next.Modules = append([]ModuleDescriptor(nil), modules...)
	s.catalog = next
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners)
}

// Subscribe registers a change listener and returns its unsubscribe
// function. Unsubscribe is idempotent.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, entry := range s.listeners {
			if entry.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// snapshotListeners must be called with the lock held. Listeners are
// invoked after unlock so they can safely re-enter the store.
func (s *Store) snapshotListeners() []listenerEntry {
	out := make([]listenerEntry, len(s.listeners))
	copy(out, s.listeners)
	return out
}

func notify(listeners []listenerEntry) {
	for _, entry := range listeners {
		entry.fn()
	}
}
