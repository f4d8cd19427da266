package optimistic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/scolago/entitlements/pkg/entitlement"
	"github.com/scolago/entitlements/pkg/logger"
)

// State is the coordinator's position in the change-attempt machine.
// Confirmed and RolledBack are transient: they name the outcome of an
// attempt on its way back to Idle and show up in logs and results, while
// State() only ever observes Idle or Speculating.
type State string

const (
	StateIdle        State = "idle"
	StateSpeculating State = "speculating"
	StateConfirmed   State = "confirmed"
	StateRolledBack  State = "rolled_back"
)

// Changer is the remote mutation boundary.
type Changer interface {
	ChangePlan(ctx context.Context, tenantID uuid.UUID, planID string) (*entitlement.Subscription, error)
}

// Invalidator removes cached entries affected by a plan change.
// *cache.MultiLevel satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// FastPoller switches the sync poll cadence while a confirmation is
// pending. *realtime.Manager satisfies it.
type FastPoller interface {
	SetFastPoll(enabled bool)
}

// Config holds the coordinator's tuning knobs.
type Config struct {
	// QueueSize bounds how many changes may wait behind the in-flight
	// one. Zero means the default; negative disables queueing, so a
	// concurrent request is rejected immediately.
	QueueSize int `env:"PLAN_CHANGE_QUEUE_SIZE" envDefault:"4"`
}

const defaultQueueSize = 4

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger injects the coordinator's logger.
func WithLogger(log *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithInvalidator wires the cache invalidated around speculation.
func WithInvalidator(inv Invalidator) CoordinatorOption {
	return func(c *Coordinator) {
		c.caches = inv
	}
}

// WithFastPoller wires the poll-cadence switch held fast while a change
// awaits confirmation.
func WithFastPoller(p FastPoller) CoordinatorOption {
	return func(c *Coordinator) {
		c.poller = p
	}
}

// Coordinator serializes plan changes for one tenant and owns the
// speculate/confirm/rollback lifecycle around each one.
type Coordinator struct {
	tenantID uuid.UUID
	store    *entitlement.Store
	changer  Changer
	caches   Invalidator
	poller   FastPoller
	log      *slog.Logger

	queueSize int

	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
	state   State
}

// NewCoordinator creates a plan-change coordinator for one tenant.
// Panics if store or changer is nil to fail fast during initialization.
func NewCoordinator(cfg Config, tenantID uuid.UUID, store *entitlement.Store, changer Changer, opts ...CoordinatorOption) *Coordinator {
	if store == nil {
		panic("optimistic: entitlement store is required")
	}
	if changer == nil {
		panic("optimistic: changer is required")
	}

	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = defaultQueueSize
	}
	if queueSize < 0 {
		queueSize = 0
	}

	c := &Coordinator{
		tenantID:  tenantID,
		store:     store,
		changer:   changer,
		queueSize: queueSize,
		state:     StateIdle,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports whether a change-attempt is currently speculating.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// QueueLength reports how many change requests wait behind the in-flight one.
func (c *Coordinator) QueueLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// ChangePlan requests a plan change for the tenant. The target plan's
// access decisions take effect immediately (speculation); the call then
// blocks until the backend confirms or rejects the change.
//
// A request arriving while another is in flight queues behind it in
// arrival order; when the queue is full it fails with ErrChangeInProgress.
// On rejection the store is rolled back to the last confirmed subscription
// and the error wraps ErrMutationRejected.
func (c *Coordinator) ChangePlan(ctx context.Context, planID string) (*entitlement.Subscription, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	c.setState(StateSpeculating)

	if err := c.store.BeginSpeculation(planID); err != nil {
		c.setState(StateIdle)
		return nil, err
	}
	c.invalidate(ctx)
	c.setFastPoll(true)
	defer c.setFastPoll(false)

	sub, err := c.changer.ChangePlan(ctx, c.tenantID, planID)
	if err != nil {
		c.store.EndSpeculation()
		c.invalidate(ctx)
		c.setState(StateRolledBack)
		c.log.Warn("plan change rolled back",
			logger.TenantID(c.tenantID.String()),
			slog.String("target_plan", planID),
			logger.Error(err),
		)
		c.setState(StateIdle)
		return nil, errors.Join(ErrMutationRejected, err)
	}

	c.store.Apply(sub)
	c.store.EndSpeculation()
	c.invalidate(ctx)
	c.setState(StateConfirmed)
	c.log.Info("plan change confirmed",
		logger.TenantID(c.tenantID.String()),
		logger.PlanID(sub.PlanID),
	)
	c.setState(StateIdle)
	return sub, nil
}

// acquire takes the single speculation slot, queueing in FIFO order when
// it is held. Returns ErrChangeInProgress when the queue is full.
func (c *Coordinator) acquire(ctx context.Context) error {
	c.mu.Lock()
	if !c.busy {
		c.busy = true
		c.mu.Unlock()
		return nil
	}
	if len(c.waiters) >= c.queueSize {
		c.mu.Unlock()
		return ErrChangeInProgress
	}
	turn := make(chan struct{})
	c.waiters = append(c.waiters, turn)
	c.mu.Unlock()

	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		for i, w := range c.waiters {
			if w == turn {
				c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
				c.mu.Unlock()
				return ctx.Err()
			}
		}
		c.mu.Unlock()
		// The slot was granted in the same instant; hand it on.
		c.release()
		return ctx.Err()
	}
}

// release hands the slot to the next waiter, or frees it.
func (c *Coordinator) release() {
	c.mu.Lock()
	if len(c.waiters) > 0 {
		turn := c.waiters[0]
		c.waiters = c.waiters[1:]
		c.mu.Unlock()
		close(turn)
		return
	}
	c.busy = false
	c.mu.Unlock()
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) invalidate(ctx context.Context) {
	if c.caches != nil {
		c.caches.Invalidate(ctx, c.tenantID.String())
	}
}

func (c *Coordinator) setFastPoll(enabled bool) {
	if c.poller != nil {
		c.poller.SetFastPoll(enabled)
	}
}
