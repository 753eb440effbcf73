package ratelimiter

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultIdleTTL         = time.Hour
	defaultCleanupInterval = 5 * time.Minute
)

// StoreConfig controls idle key eviction in MemoryStore.
type StoreConfig struct {
	IdleTTL         time.Duration `env:"RATE_LIMIT_IDLE_TTL" envDefault:"1h"`
	CleanupInterval time.Duration `env:"RATE_LIMIT_CLEANUP_INTERVAL" envDefault:"5m"`
}

// entry is the state of one key.
type entry struct {
	lim        *rate.Limiter
	lastAccess atomic.Int64 // unix nanos, read by the janitor
}

// MemoryStore implements Store with one golang.org/x/time/rate limiter per key.
// It must be created once and shared; idle keys are evicted in the background.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry

	now             func() time.Time
	idleTTL         time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often idle keys are evicted.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// WithIdleTTL sets how long a key may stay untouched before eviction.
func WithIdleTTL(ttl time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if ttl > 0 {
			ms.idleTTL = ttl
		}
	}
}

// WithStoreConfig applies both eviction settings from cfg.
func WithStoreConfig(cfg StoreConfig) MemoryStoreOption {
	return func(ms *MemoryStore) {
		WithIdleTTL(cfg.IdleTTL)(ms)
		WithCleanupInterval(cfg.CleanupInterval)(ms)
	}
}

// WithClock replaces time.Now for refill and eviction decisions.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory store with optional cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		entries:         make(map[string]*entry),
		now:             time.Now,
		idleTTL:         defaultIdleTTL,
		cleanupInterval: defaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ms)
	}

	if ms.cleanupInterval > 0 {
		go ms.cleanup()
	}

	return ms
}

// ConsumeTokens takes tokens from the bucket for key, creating a full bucket on
// first use. The check and the consumption are a single atomic step.
func (ms *MemoryStore) ConsumeTokens(_ context.Context, key string, tokens int, config Config) (*Result, error) {
	now := ms.now()

	// The read lock is held while consuming so eviction cannot drop an
	// entry that is in use.
	ms.mu.RLock()
	if e, ok := ms.entries[key]; ok {
		res := e.take(now, tokens, config)
		ms.mu.RUnlock()
		return res, nil
	}
	ms.mu.RUnlock()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.entries[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Limit(config.tokensPerSecond()), config.Capacity)}
		ms.entries[key] = e
	}
	return e.take(now, tokens, config), nil
}

func (ms *MemoryStore) Reset(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.entries, key)
	return nil
}

// Len returns the number of tracked keys.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.entries)
}

// EvictIdle removes keys not touched within the idle TTL and returns how many
// were removed.
func (ms *MemoryStore) EvictIdle() int {
	cutoff := ms.now().Add(-ms.idleTTL).UnixNano()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	removed := 0
	for key, e := range ms.entries {
		if e.lastAccess.Load() < cutoff {
			delete(ms.entries, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	ms.closeOnce.Do(func() { close(ms.stopCleanup) })
}

func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.EvictIdle()
		case <-ms.stopCleanup:
			return
		}
	}
}

func (e *entry) take(now time.Time, n int, config Config) *Result {
	e.lastAccess.Store(now.UnixNano())

	limit := rate.Limit(config.tokensPerSecond())
	if e.lim.Limit() != limit {
		e.lim.SetLimitAt(now, limit)
	}
	if e.lim.Burst() != config.Capacity {
		e.lim.SetBurstAt(now, config.Capacity)
	}

	allowed := true
	if n > 0 {
		allowed = e.lim.AllowN(now, n)
	}

	tokens := e.lim.TokensAt(now)
	res := &Result{
		Allowed:   allowed,
		Limit:     config.Capacity,
		Remaining: max(0, int(math.Floor(tokens))),
		ResetAt:   now.Add(timeToRefill(float64(config.Capacity)-tokens, limit)),
	}
	if !allowed {
		res.RetryIn = timeToRefill(float64(n)-tokens, limit)
	}
	return res
}

func timeToRefill(deficit float64, limit rate.Limit) time.Duration {
	if deficit <= 0 || limit <= 0 {
		return 0
	}
	return time.Duration(deficit / float64(limit) * float64(time.Second))
}
