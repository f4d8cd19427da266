package entitlements

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scolago/entitlements/pkg/cache"
	"github.com/scolago/entitlements/pkg/entitlement"
	"github.com/scolago/entitlements/pkg/logger"
	"github.com/scolago/entitlements/pkg/optimistic"
	"github.com/scolago/entitlements/pkg/realtime"
)

// Config aggregates the engine's tuning knobs. All fields load from the
// environment via pkg/config.
type Config struct {
	// ModulesTTL bounds how long derived access decisions are served
	// from cache before being recomputed.
	ModulesTTL time.Duration `env:"ENTITLEMENT_MODULES_TTL" envDefault:"5m"`
	// CatalogTTL bounds how long the slow-changing plan catalog is cached.
	CatalogTTL time.Duration `env:"ENTITLEMENT_CATALOG_TTL" envDefault:"30m"`

	Sync  realtime.Config
	Queue optimistic.Config
}

func (c Config) withDefaults() Config {
	if c.ModulesTTL <= 0 {
		c.ModulesTTL = 5 * time.Minute
	}
	if c.CatalogTTL <= 0 {
		c.CatalogTTL = 30 * time.Minute
	}
	return c
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	log       *slog.Logger
	transport realtime.Transport
	persisted cache.Tier
	probes    []func(context.Context) error
}

// WithLogger injects the logger shared by every component.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithTransport wires a push transport. Without one the engine runs in
// polling-only mode.
func WithTransport(tr realtime.Transport) ServiceOption {
	return func(o *serviceOptions) {
		o.transport = tr
	}
}

// WithPersistedTier wires a persisted cache tier, typically
// cache.NewRedisTier. Without one the cache is memory-only.
func WithPersistedTier(tier cache.Tier) ServiceOption {
	return func(o *serviceOptions) {
		o.persisted = tier
	}
}

// WithReadinessProbe registers a dependency health probe reported through
// Ready. NewFromEnv registers one for Redis when a persisted tier is built.
func WithReadinessProbe(probe func(context.Context) error) ServiceOption {
	return func(o *serviceOptions) {
		if probe != nil {
			o.probes = append(o.probes, probe)
		}
	}
}

// Service is the per-tenant entitlement engine: a store mirroring the
// backend's subscription, a multi-level cache over derived decisions, a
// sync channel keeping the mirror fresh and a coordinator for optimistic
// plan changes.
type Service struct {
	cfg      Config
	tenantID uuid.UUID
	backend  Backend

	store   *entitlement.Store
	caches  *cache.MultiLevel
	syncer  *realtime.Manager
	changes *optimistic.Coordinator
	probes  []func(context.Context) error
	log     *slog.Logger
}

// New builds the engine for one tenant. It fetches the catalog from the
// backend immediately so a misconfigured deployment fails at startup.
// Panics if backend is nil.
func New(ctx context.Context, cfg Config, tenantID uuid.UUID, backend Backend, opts ...ServiceOption) (*Service, error) {
	if backend == nil {
		panic("entitlements: backend is required")
	}

	o := &serviceOptions{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(o)
	}
	cfg = cfg.withDefaults()

	catalog, err := backend.FetchCatalog(ctx)
	if err != nil {
		return nil, errors.Join(ErrCatalogUnavailable, err)
	}

	store := entitlement.NewStore(catalog, entitlement.WithLogger(o.log.With(logger.Component("store"))))
	caches := cache.NewMultiLevel(cache.NewMemoryTier(ctx), o.persisted)

	managerOpts := []realtime.ManagerOption{
		realtime.WithLogger(o.log.With(logger.Component("sync"))),
		realtime.WithInvalidator(caches),
	}
	if o.transport != nil {
		managerOpts = append(managerOpts, realtime.WithTransport(o.transport))
	}
	syncer := realtime.NewManager(cfg.Sync, tenantID, store, backend, managerOpts...)

	changes := optimistic.NewCoordinator(cfg.Queue, tenantID, store, backend,
		optimistic.WithLogger(o.log.With(logger.Component("changes"))),
		optimistic.WithInvalidator(caches),
		optimistic.WithFastPoller(syncer),
	)

	return &Service{
		cfg:      cfg,
		tenantID: tenantID,
		backend:  backend,
		store:    store,
		caches:   caches,
		syncer:   syncer,
		changes:  changes,
		probes:   o.probes,
		log:      o.log,
	}, nil
}

// Start fetches the tenant's subscription and opens the sync channel.
func (s *Service) Start(ctx context.Context) error {
	sub, err := s.backend.FetchSubscription(ctx, s.tenantID)
	if err != nil {
		return errors.Join(ErrSubscriptionUnavailable, err)
	}
	if s.store.Apply(sub) {
		s.caches.Invalidate(ctx, s.tenantID.String())
	}
	return s.syncer.Start(ctx)
}

// Ready runs the registered dependency probes and joins their failures.
// A service without probes is always ready.
func (s *Service) Ready(ctx context.Context) error {
	var errs []error
	for _, probe := range s.probes {
		if err := probe(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops the sync channel and releases cache resources.
func (s *Service) Close() error {
	s.syncer.Stop()
	return s.caches.Close()
}

// HasModuleAccess reports whether the tenant's effective plan grants the
// module. Decisions are served from the cache; a cache failure falls back
// to a direct evaluation, so access checks never error.
func (s *Service) HasModuleAccess(ctx context.Context, moduleID string) bool {
	decisions, err := s.decisions(ctx)
	if err != nil {
		return s.store.HasModuleAccess(moduleID)
	}
	for _, d := range decisions {
		if d.ModuleID == moduleID {
			return d.Accessible
		}
	}
	return false
}

// HasCategoryAccess reports whether at least one module in the category
// is accessible under the effective plan.
func (s *Service) HasCategoryAccess(categoryID string) bool {
	return s.store.HasCategoryAccess(categoryID)
}

// CurrentPlan returns the tenant's effective plan, speculative overlay
// included. The second return is false before the first sync.
func (s *Service) CurrentPlan() (entitlement.Plan, bool) {
	return s.store.EffectivePlan()
}

// Plans returns the subscribable plans, served from the catalog cache.
func (s *Service) Plans(ctx context.Context) ([]entitlement.Plan, error) {
	return cache.GetTyped(ctx, s.caches, cache.Key("catalog", "plans"), s.cfg.CatalogTTL,
		func(ctx context.Context) ([]entitlement.Plan, error) {
			catalog, err := s.backend.FetchCatalog(ctx)
			if err != nil {
				return nil, errors.Join(ErrCatalogUnavailable, err)
			}
			var plans []entitlement.Plan
			for _, p := range catalog.Plans {
				if p.IsActive() {
					plans = append(plans, p)
				}
			}
			return plans, nil
		})
}

// ChangePlan moves the tenant to the target plan. The new plan's access
// takes effect immediately; see optimistic.Coordinator for the
// confirmation and rollback contract.
func (s *Service) ChangePlan(ctx context.Context, planID string) (*entitlement.Subscription, error) {
	return s.changes.ChangePlan(ctx, planID)
}

// Refresh forces an immediate reconciliation with the backend and revives
// the push channel after reconnect exhaustion.
func (s *Service) Refresh(ctx context.Context) error {
	return s.syncer.ManualSync(ctx)
}

// SyncStatus reports the sync channel's current mode.
func (s *Service) SyncStatus() realtime.Status {
	return s.syncer.Status()
}

// Subscribe registers a callback invoked after every accepted
// subscription update. The returned function unsubscribes.
func (s *Service) Subscribe(fn entitlement.Listener) func() {
	return s.store.Subscribe(fn)
}

func (s *Service) decisions(ctx context.Context) ([]entitlement.AccessDecision, error) {
	return cache.GetTyped(ctx, s.caches, cache.Key(s.tenantID.String(), "modules"), s.cfg.ModulesTTL,
		func(context.Context) ([]entitlement.AccessDecision, error) {
			return s.store.Decisions(), nil
		})
}
