package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// memoryTier is the process-local cache tier. Entries live in a TTL map
// with a janitor goroutine sweeping expired ones; the janitor stops when
// the constructor context is cancelled or the tier is closed, whichever
// comes first.
type memoryTier struct {
	mu        sync.Mutex
	items     map[string]memoryEntry
	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

const janitorInterval = time.Minute

// MemoryTierOption configures a memory tier.
type MemoryTierOption func(*memoryTier)

// WithMemoryClock injects the time source used for expiry checks.
func WithMemoryClock(now func() time.Time) MemoryTierOption {
	return func(t *memoryTier) {
		if now != nil {
			t.now = now
		}
	}
}

// NewMemoryTier creates the in-memory tier. The context bounds the janitor
// goroutine's lifetime; Close stops it earlier.
func NewMemoryTier(ctx context.Context, opts ...MemoryTierOption) Tier {
	t := &memoryTier{
		items: make(map[string]memoryEntry),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.janitor(ctx)
	return t
}

func (t *memoryTier) Get(_ context.Context, key string) ([]byte, time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.items[key]
	if !ok {
		return nil, time.Time{}, false
	}
	if t.now().After(entry.expiresAt) {
		delete(t.items, key)
		return nil, time.Time{}, false
	}
	return entry.data, entry.expiresAt, true
}

func (t *memoryTier) Set(_ context.Context, key string, data []byte, expiresAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[key] = memoryEntry{data: data, expiresAt: expiresAt}
}

func (t *memoryTier) Delete(_ context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, key)
}

func (t *memoryTier) DeleteMatching(_ context.Context, pattern string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.items {
		if strings.Contains(key, pattern) {
			delete(t.items, key)
		}
	}
}

func (t *memoryTier) Close() error {
	t.closeOnce.Do(func() { close(t.done) })

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[string]memoryEntry)
	return nil
}

func (t *memoryTier) janitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sweep()
		case <-ctx.Done():
			return
		case <-t.done:
			return
		}
	}
}

func (t *memoryTier) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, entry := range t.items {
		if now.After(entry.expiresAt) {
			delete(t.items, key)
		}
	}
}
