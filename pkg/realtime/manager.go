package realtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scolago/entitlements/pkg/entitlement"
	"github.com/scolago/entitlements/pkg/logger"
)

// Status is the sync channel health indicator. It is informational and
// non-blocking: degraded sync never prevents reads from the store.
type Status string

const (
	// StatusStopped means the manager is not running.
	StatusStopped Status = "stopped"
	// StatusLive means the push channel is connected.
	StatusLive Status = "live"
	// StatusDegraded means the push channel dropped and reconnection is in progress.
	StatusDegraded Status = "degraded"
	// StatusPollingOnly means push is unavailable for the rest of the
	// session (budget exhausted or no transport) and polling carries sync.
	StatusPollingOnly Status = "polling-only"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger injects the manager's logger.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithInvalidator wires the cache invalidated on applied updates.
func WithInvalidator(inv Invalidator) ManagerOption {
	return func(m *Manager) {
		m.caches = inv
	}
}

// WithTransport wires the push transport. Without one the manager runs in
// polling-only mode.
func WithTransport(tr Transport) ManagerOption {
	return func(m *Manager) {
		m.transport = tr
	}
}

// Manager owns the two delivery paths into the entitlement store: the push
// stream and the poll loop. It is scoped to exactly one tenant; switching
// tenants means stopping this manager and starting a new one.
type Manager struct {
	cfg       Config
	tenantID  uuid.UUID
	store     *entitlement.Store
	source    Source
	transport Transport
	caches    Invalidator
	log       *slog.Logger

	mu        sync.Mutex
	running   bool
	status    Status
	fastPoll  bool
	attempts  int
	exhausted bool
	pushAlive bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	pollKick  chan struct{}
}

// NewManager creates a sync channel manager for one tenant.
// Panics if store or source is nil to fail fast during initialization.
func NewManager(cfg Config, tenantID uuid.UUID, store *entitlement.Store, source Source, opts ...ManagerOption) *Manager {
	if store == nil {
		panic("realtime: entitlement store is required")
	}
	if source == nil {
		panic("realtime: source is required")
	}
	m := &Manager{
		cfg:      cfg.withDefaults(),
		tenantID: tenantID,
		store:    store,
		source:   source,
		status:   StatusStopped,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the poll loop and, when a transport is configured, the
// push connection loop. Returns ErrAlreadyRunning on a second call.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.pollKick = make(chan struct{}, 1)

	m.wg.Add(1)
	go m.pollLoop(m.ctx)

	if m.transport != nil && !m.exhausted {
		m.status = StatusDegraded
		m.pushAlive = true
		m.wg.Add(1)
		go m.pushLoop(m.ctx)
	} else {
		m.status = StatusPollingOnly
	}
	return nil
}

// Stop cancels the push connection, pending reconnection timers and the
// poll ticker, then waits for both loops to exit. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	m.status = StatusStopped
	m.pushAlive = false
	m.mu.Unlock()
}

// Status returns the current sync health indicator.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SetFastPoll switches the poll cadence between the normal and fast
// intervals. The coordinator enables fast mode while a plan-change
// confirmation is pending.
func (m *Manager) SetFastPoll(enabled bool) {
	m.mu.Lock()
	changed := m.fastPoll != enabled
	m.fastPoll = enabled
	kick := m.pollKick
	m.mu.Unlock()

	if changed && kick != nil {
		select {
		case kick <- struct{}{}:
		default:
		}
	}
}

// ManualSync forces an immediate full refetch and resets the push
// reconnection budget. This is the only path that revives the push channel
// after its budget was exhausted.
func (m *Manager) ManualSync(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.attempts = 0
	m.exhausted = false
	if m.transport != nil && !m.pushAlive {
		m.pushAlive = true
		m.wg.Add(1)
		go m.pushLoop(m.ctx)
	}
	m.mu.Unlock()

	m.refetch(ctx)
	return nil
}

// pushLoop keeps the push stream connected, retrying with a fixed backoff
// until the reconnection budget runs out.
func (m *Manager) pushLoop(ctx context.Context) {
	defer m.wg.Done()
	defer m.markPushDead()

	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := m.transport.Connect(ctx, m.tenantID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if m.registerDisconnect(err) {
				return
			}
			if !sleep(ctx, m.cfg.ReconnectBackoff) {
				return
			}
			continue
		}

		m.setStatus(StatusLive)
		m.consume(ctx, stream)
		_ = stream.Close()

		if ctx.Err() != nil {
			return
		}
		m.setStatus(StatusDegraded)
		if m.registerDisconnect(stream.Err()) {
			return
		}
		if !sleep(ctx, m.cfg.ReconnectBackoff) {
			return
		}
	}
}

// registerDisconnect counts one failed connection or dropped stream against
// the reconnection budget. Returns true when the budget is exhausted.
func (m *Manager) registerDisconnect(cause error) bool {
	m.mu.Lock()
	m.attempts++
	attempts := m.attempts
	exhausted := attempts >= m.cfg.ReconnectAttempts
	if exhausted {
		m.exhausted = true
	}
	m.mu.Unlock()

	if exhausted {
		m.log.Warn("push channel reconnection budget exhausted, polling for the rest of the session",
			logger.TenantID(m.tenantID.String()),
			logger.Attempt(attempts),
			logger.Error(cause),
		)
		m.setStatus(StatusPollingOnly)
		return true
	}

	m.log.Info("push channel disconnected, reconnecting",
		logger.TenantID(m.tenantID.String()),
		logger.Attempt(attempts),
		slog.Duration("backoff", m.cfg.ReconnectBackoff),
		logger.Error(cause),
	)
	return false
}

func (m *Manager) consume(ctx context.Context, stream Stream) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			m.handleEvent(ctx, ev)
		}
	}
}

// handleEvent applies one validated sync event. The tenant check here is an
// isolation boundary: a foreign event must never mutate this scope's store
// or invalidate its caches.
func (m *Manager) handleEvent(ctx context.Context, ev entitlement.SyncEvent) {
	if ev == nil {
		return
	}
	if ev.Tenant() != m.tenantID {
		m.log.Debug("discarding sync event for foreign tenant",
			slog.String("event_tenant", ev.Tenant().String()),
			logger.TenantID(m.tenantID.String()),
			logger.EventType(string(ev.EventType())),
		)
		return
	}

	switch e := ev.(type) {
	case entitlement.SubscriptionUpdatedEvent:
		sub := e.Subscription
		if m.store.Apply(&sub) {
			m.invalidateTenant(ctx)
		}
	case entitlement.PlanChangedEvent:
		// The event only names the plan; fetch the authoritative record.
		m.refetch(ctx)
	case entitlement.ModulesUpdatedEvent:
		m.store.SetModules(e.Modules)
		m.invalidateTenant(ctx)
	}
}

// pollLoop periodically compares the remote sync marker with the store's
// LastSyncedAt and refetches on drift. A kick resets the ticker so interval
// changes take effect immediately.
func (m *Manager) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	timer := time.NewTimer(m.pollInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.pollKick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.pollInterval())
		case <-timer.C:
			m.poll(ctx)
			timer.Reset(m.pollInterval())
		}
	}
}

func (m *Manager) pollInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fastPoll {
		return m.cfg.FastPollInterval
	}
	return m.cfg.PollInterval
}

func (m *Manager) poll(ctx context.Context) {
	marker, err := m.source.SyncMarker(ctx, m.tenantID)
	if err != nil {
		m.log.Warn("sync marker poll failed",
			logger.TenantID(m.tenantID.String()),
			logger.Error(err),
		)
		return
	}
	if marker.After(m.store.LastSyncedAt()) {
		m.refetch(ctx)
	}
}

func (m *Manager) refetch(ctx context.Context) {
	sub, err := m.source.FetchSubscription(ctx, m.tenantID)
	if err != nil {
		m.log.Warn("subscription refetch failed",
			logger.TenantID(m.tenantID.String()),
			logger.Error(err),
		)
		return
	}
	if m.store.Apply(sub) {
		m.invalidateTenant(ctx)
	}
}

func (m *Manager) invalidateTenant(ctx context.Context) {
	if m.caches != nil {
		m.caches.Invalidate(ctx, m.tenantID.String())
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if m.status == s || !m.running {
		m.mu.Unlock()
		return
	}
	old := m.status
	m.status = s
	m.mu.Unlock()

	m.log.Info("sync channel status changed",
		logger.TenantID(m.tenantID.String()),
		slog.String("from", string(old)),
		slog.String("to", string(s)),
	)
}

func (m *Manager) markPushDead() {
	m.mu.Lock()
	m.pushAlive = false
	m.mu.Unlock()
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
