package breaker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/controlplane/pkg/logger"
	"github.com/dmitrymomot/controlplane/pkg/metrics"
)

const defaultName = "default"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomePanic   = "panic"
)

// Breaker guards a fallible operation with a Closed/Open/HalfOpen state machine.
// A Breaker is safe for concurrent use and is meant to live for the whole
// process, one per protected resource.
type Breaker struct {
	name          string
	cfg           Config
	log           *slog.Logger
	metrics       metrics.Sink
	now           func() time.Time
	onStateChange []func(name string, from, to State)

	mu          sync.RWMutex
	state       State
	generation  uint64
	lastFailure time.Time
	probes      uint32

	// failures is written under mu but read lock-free by FailureCount.
	failures atomic.Uint32
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Name        string     `json:"name"`
	State       State      `json:"state"`
	Failures    uint32     `json:"failure_count"`
	Probes      uint32     `json:"half_open_probes"`
	LastFailure *time.Time `json:"last_failure_at,omitempty"`
}

type transition struct {
	from, to State
}

// New creates a closed breaker.
func New(cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		name:    defaultName,
		cfg:     cfg.withDefaults(),
		log:     slog.New(slog.DiscardHandler),
		metrics: metrics.Noop{},
		now:     time.Now,
		state:   StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Call runs op if the breaker admits it.
//
// It returns ErrCircuitOpen without invoking op when admission is refused, and
// an *OperationFailedError wrapping op's error after recording the failure.
// A panic in op is recorded as a failure and re-raised. An op that never
// returns normally (runtime.Goexit) is recorded as a failure as well.
func Call[T any](b *Breaker, op func() (T, error)) (T, error) {
	var zero T

	gen, err := b.admit()
	if err != nil {
		return zero, err
	}

	start := b.now()
	completed := false
	defer func() {
		if completed {
			return
		}
		if r := recover(); r != nil {
			b.record(gen, false, start, outcomePanic)
			panic(r)
		}
		b.record(gen, false, start, outcomeFailure)
	}()

	v, err := op()
	completed = true
	if err != nil {
		b.record(gen, false, start, outcomeFailure)
		return zero, &OperationFailedError{Breaker: b.name, Err: err}
	}

	b.record(gen, true, start, outcomeSuccess)
	return v, nil
}

// Do is Call for operations without a result value.
func (b *Breaker) Do(op func() error) error {
	_, err := Call(b, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// Config returns the effective configuration.
func (b *Breaker) Config() Config { return b.cfg }

// State returns the stored state. It never triggers the Open to HalfOpen
// transition; that only happens when a call is attempted.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// FailureCount returns the consecutive failure counter.
func (b *Breaker) FailureCount() uint32 {
	return b.failures.Load()
}

// Snapshot returns the current state, counters and last failure time.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Snapshot{
		Name:     b.name,
		State:    b.state,
		Failures: b.failures.Load(),
		Probes:   b.probes,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		s.LastFailure = &t
	}
	return s
}

// Reset forces the breaker closed and clears its counters.
// Outcomes of calls admitted before the reset are ignored.
func (b *Breaker) Reset() {
	b.mu.Lock()
	tr := b.setState(StateClosed)
	b.failures.Store(0)
	b.lastFailure = time.Time{}
	b.mu.Unlock()

	b.emit(tr)
}

func (b *Breaker) admit() (uint64, error) {
	gen, tr, rejectedIn, err := b.tryAdmit(b.now())
	b.emit(tr)
	if err != nil {
		b.metrics.IncrementCounter("circuit_breaker_rejected_total", metrics.Labels{
			"breaker": b.name,
			"state":   rejectedIn.String(),
		})
		b.log.Debug("call rejected",
			logger.Breaker(b.name),
			slog.String("state", rejectedIn.String()),
		)
	}
	return gen, err
}

// tryAdmit is the admission critical section: the Open timeout check, the
// HalfOpen transition and the probe check-and-increment happen under one lock.
func (b *Breaker) tryAdmit(now time.Time) (uint64, *transition, State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var tr *transition
	if b.state == StateOpen {
		if now.Sub(b.lastFailure) < b.cfg.RecoveryTimeout {
			return 0, nil, StateOpen, ErrCircuitOpen
		}
		tr = b.setState(StateHalfOpen)
	}

	if b.state == StateHalfOpen {
		if b.probes >= b.cfg.HalfOpenMaxCalls {
			return 0, tr, StateHalfOpen, errProbeLimit
		}
		b.probes++
	}

	return b.generation, tr, b.state, nil
}

func (b *Breaker) record(gen uint64, success bool, start time.Time, outcome string) {
	now := b.now()
	tr := b.tryRecord(gen, success, now)
	b.emit(tr)

	b.metrics.RecordHistogram("circuit_breaker_call_duration_seconds", now.Sub(start).Seconds(), metrics.Labels{
		"breaker": b.name,
		"outcome": outcome,
	})
}

func (b *Breaker) tryRecord(gen uint64, success bool, now time.Time) *transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	// The call was admitted in an earlier state period; its outcome belongs
	// to a period that has already been decided.
	if gen != b.generation {
		return nil
	}

	switch b.state {
	case StateClosed:
		if success {
			b.failures.Store(0)
			return nil
		}
		b.lastFailure = now
		if b.failures.Add(1) >= b.cfg.FailureThreshold {
			return b.setState(StateOpen)
		}
	case StateHalfOpen:
		if success {
			return b.setState(StateClosed)
		}
		b.lastFailure = now
		tr := b.setState(StateOpen)
		b.failures.Store(1)
		return tr
	}
	return nil
}

// setState must be called with mu held. It returns nil when to equals the
// current state.
func (b *Breaker) setState(to State) *transition {
	if b.state == to {
		return nil
	}
	from := b.state
	b.state = to
	b.generation++
	b.probes = 0
	if to == StateClosed {
		b.failures.Store(0)
	}
	return &transition{from: from, to: to}
}

func (b *Breaker) emit(tr *transition) {
	if tr == nil {
		return
	}

	level, msg := slog.LevelInfo, "circuit state changed"
	if tr.to == StateOpen {
		level, msg = slog.LevelError, "circuit opened"
	}
	b.log.LogAttrs(context.Background(), level, msg,
		logger.Breaker(b.name),
		logger.Transition(tr.from, tr.to),
		slog.Uint64("failures", uint64(b.failures.Load())),
	)

	b.metrics.IncrementCounter("circuit_breaker_transitions_total", metrics.Labels{
		"breaker": b.name,
		"from":    tr.from.String(),
		"to":      tr.to.String(),
	})

	for _, fn := range b.onStateChange {
		fn(b.name, tr.from, tr.to)
	}
}
