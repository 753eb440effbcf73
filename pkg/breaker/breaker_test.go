package breaker_test

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/controlplane/pkg/breaker"
	"github.com/dmitrymomot/controlplane/pkg/metrics"
)

var errDownstream = errors.New("downstream unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu       sync.Mutex
	counters map[string][]metrics.Labels
}

func (s *recordingSink) IncrementCounter(name string, labels metrics.Labels) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters == nil {
		s.counters = make(map[string][]metrics.Labels)
	}
	s.counters[name] = append(s.counters[name], labels)
}

func (s *recordingSink) RecordHistogram(string, float64, metrics.Labels) {}

func (s *recordingSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters[name])
}

func fail() error    { return errDownstream }
func succeed() error { return nil }

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	cb := breaker.New(breaker.Config{})
	assert.Equal(t, breaker.DefaultConfig(), cb.Config())
	assert.Equal(t, breaker.StateClosed, cb.State())
	assert.Equal(t, uint32(0), cb.FailureCount())
	assert.Equal(t, "default", cb.Name())
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	cb := breaker.New(breaker.Config{FailureThreshold: 3, RecoveryTimeout: time.Minute, HalfOpenMaxCalls: 1},
		breaker.WithMetrics(sink),
		breaker.WithName("orders"),
	)

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Do(fail), breaker.ErrOperationFailed)
		assert.Equal(t, breaker.StateClosed, cb.State())
	}
	require.ErrorIs(t, cb.Do(fail), breaker.ErrOperationFailed)
	assert.Equal(t, breaker.StateOpen, cb.State())
	assert.Equal(t, uint32(3), cb.FailureCount())

	invoked := false
	err := cb.Do(func() error {
		invoked = true
		return nil
	})
	require.ErrorIs(t, err, breaker.ErrCircuitOpen)
	assert.NotErrorIs(t, err, breaker.ErrOperationFailed)
	assert.False(t, invoked, "operation must not run while open")

	assert.Equal(t, 1, sink.count("circuit_breaker_transitions_total"))
	assert.Equal(t, 1, sink.count("circuit_breaker_rejected_total"))
	assert.Equal(t, metrics.Labels{"breaker": "orders", "from": "closed", "to": "open"},
		sink.counters["circuit_breaker_transitions_total"][0])
	assert.Equal(t, metrics.Labels{"breaker": "orders", "state": "open"},
		sink.counters["circuit_breaker_rejected_total"][0])
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	t.Parallel()

	cb := breaker.New(breaker.Config{FailureThreshold: 3})

	require.Error(t, cb.Do(fail))
	require.Error(t, cb.Do(fail))
	assert.Equal(t, uint32(2), cb.FailureCount())

	require.NoError(t, cb.Do(succeed))
	assert.Equal(t, uint32(0), cb.FailureCount())

	require.Error(t, cb.Do(fail))
	require.Error(t, cb.Do(fail))
	assert.Equal(t, breaker.StateClosed, cb.State(), "failures must be consecutive")
}

func TestBreaker_RecoveryScenario(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := breaker.New(breaker.Config{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 2,
	}, breaker.WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		require.Error(t, cb.Do(fail))
	}
	require.Equal(t, breaker.StateOpen, cb.State())
	require.Equal(t, uint32(3), cb.FailureCount())

	clock.Advance(10 * time.Second)
	require.ErrorIs(t, cb.Do(succeed), breaker.ErrCircuitOpen)
	assert.Equal(t, breaker.StateOpen, cb.State())

	clock.Advance(51 * time.Second)
	var probeState breaker.Snapshot
	err := cb.Do(func() error {
		probeState = cb.Snapshot()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, breaker.StateHalfOpen, probeState.State)
	assert.Equal(t, uint32(1), probeState.Probes, "admission counts as a probe")

	assert.Equal(t, breaker.StateClosed, cb.State())
	assert.Equal(t, uint32(0), cb.FailureCount())
}

func TestBreaker_AdmitsExactlyAtTimeout(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: 30 * time.Second, HalfOpenMaxCalls: 1},
		breaker.WithClock(clock.Now))

	require.Error(t, cb.Do(fail))
	clock.Advance(30*time.Second - time.Nanosecond)
	require.ErrorIs(t, cb.Do(succeed), breaker.ErrCircuitOpen)

	clock.Advance(time.Nanosecond)
	require.NoError(t, cb.Do(succeed))
	assert.Equal(t, breaker.StateClosed, cb.State())
}

func TestBreaker_StateHasNoSideEffects(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Second},
		breaker.WithClock(clock.Now))

	require.Error(t, cb.Do(fail))
	clock.Advance(time.Hour)

	for i := 0; i < 3; i++ {
		assert.Equal(t, breaker.StateOpen, cb.State())
		assert.Equal(t, uint32(1), cb.FailureCount())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	var transitions []string
	cb := breaker.New(breaker.Config{FailureThreshold: 2, RecoveryTimeout: time.Minute, HalfOpenMaxCalls: 3},
		breaker.WithClock(clock.Now),
		breaker.WithOnStateChange(func(_ string, from, to breaker.State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)

	require.Error(t, cb.Do(fail))
	require.Error(t, cb.Do(fail))
	clock.Advance(time.Minute)

	require.ErrorIs(t, cb.Do(fail), breaker.ErrOperationFailed)
	assert.Equal(t, breaker.StateOpen, cb.State())
	assert.Equal(t, uint32(1), cb.FailureCount(), "counter restarts for the new open period")

	clock.Advance(30 * time.Second)
	require.ErrorIs(t, cb.Do(succeed), breaker.ErrCircuitOpen, "recovery timeout restarts from the probe failure")

	clock.Advance(30 * time.Second)
	require.NoError(t, cb.Do(succeed))

	assert.Equal(t, []string{
		"closed>open",
		"open>half-open",
		"half-open>open",
		"open>half-open",
		"half-open>closed",
	}, transitions)
}

func TestCall_ReturnsValue(t *testing.T) {
	t.Parallel()

	cb := breaker.New(breaker.DefaultConfig())

	v, err := breaker.Call(cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = breaker.Call(cb, func() (int, error) { return 7, errDownstream })
	require.Error(t, err)
	assert.Zero(t, v)

	var opErr *breaker.OperationFailedError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "default", opErr.Breaker)
	assert.ErrorIs(t, err, errDownstream)
	assert.Equal(t, errDownstream, errors.Unwrap(err))
}

func TestCall_PanicRecordedAsFailure(t *testing.T) {
	t.Parallel()

	cb := breaker.New(breaker.Config{FailureThreshold: 1})

	assert.PanicsWithValue(t, "boom", func() {
		_ = cb.Do(func() error { panic("boom") })
	})
	assert.Equal(t, breaker.StateOpen, cb.State())
	assert.Equal(t, uint32(1), cb.FailureCount())
}

func goexitOp() error {
	runtime.Goexit()
	return nil
}

// doInGoroutine runs cb.Do(op) on its own goroutine so op may call
// runtime.Goexit, and reports whether Do returned normally.
func doInGoroutine(cb *breaker.Breaker, op func() error) bool {
	done := make(chan bool, 1)
	go func() {
		returned := false
		defer func() { done <- returned }()
		_ = cb.Do(op)
		returned = true
	}()
	return <-done
}

func TestCall_GoexitRecordedAsFailure(t *testing.T) {
	t.Parallel()

	t.Run("closed", func(t *testing.T) {
		t.Parallel()

		cb := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Minute})

		assert.False(t, doInGoroutine(cb, goexitOp))
		assert.Equal(t, breaker.StateOpen, cb.State())
		assert.Equal(t, uint32(1), cb.FailureCount())
	})

	t.Run("half-open releases the trial slot", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		cb := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Minute, HalfOpenMaxCalls: 1},
			breaker.WithClock(clock.Now))

		require.Error(t, cb.Do(fail))
		clock.Advance(time.Minute)

		assert.False(t, doInGoroutine(cb, goexitOp))
		assert.Equal(t, breaker.StateOpen, cb.State())
		assert.Equal(t, uint32(1), cb.FailureCount())

		clock.Advance(time.Minute)
		require.NoError(t, cb.Do(succeed))
		assert.Equal(t, breaker.StateClosed, cb.State())
	})
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	require.Error(t, cb.Do(fail))
	require.Equal(t, breaker.StateOpen, cb.State())
	require.NotNil(t, cb.Snapshot().LastFailure)

	cb.Reset()

	snap := cb.Snapshot()
	assert.Equal(t, breaker.StateClosed, snap.State)
	assert.Equal(t, uint32(0), snap.Failures)
	assert.Nil(t, snap.LastFailure)
	require.NoError(t, cb.Do(succeed))
}

func TestBreaker_ConcurrentFailuresAllCounted(t *testing.T) {
	t.Parallel()

	const workers = 200
	cb := breaker.New(breaker.Config{FailureThreshold: workers * 2})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Do(fail)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(workers), cb.FailureCount())
	assert.Equal(t, breaker.StateClosed, cb.State())
}

func TestBreaker_ConcurrentFailuresOpenOnce(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	cb := breaker.New(breaker.Config{FailureThreshold: 2, RecoveryTimeout: time.Hour}, breaker.WithMetrics(sink))

	const inFlight = 10
	release := make(chan struct{})
	var admitted sync.WaitGroup
	var done sync.WaitGroup

	for i := 0; i < inFlight; i++ {
		admitted.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			_ = cb.Do(func() error {
				admitted.Done()
				<-release
				return errDownstream
			})
		}()
	}

	admitted.Wait()
	close(release)
	done.Wait()

	assert.Equal(t, breaker.StateOpen, cb.State())
	assert.Equal(t, uint32(2), cb.FailureCount(), "failures from the closed period after opening are discarded")
	assert.Equal(t, 1, sink.count("circuit_breaker_transitions_total"))
}

func TestBreaker_HalfOpenProbeCap(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cb := breaker.New(breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Second, HalfOpenMaxCalls: 3},
		breaker.WithClock(clock.Now))

	require.Error(t, cb.Do(fail))
	clock.Advance(time.Second)

	const callers = 50
	release := make(chan struct{})
	var admitted, rejected atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := cb.Do(func() error {
				admitted.Add(1)
				<-release
				return nil
			})
			if errors.Is(err, breaker.ErrCircuitOpen) {
				rejected.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool {
		return admitted.Load()+rejected.Load() == callers
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, int32(3), admitted.Load())
	assert.Equal(t, int32(callers-3), rejected.Load())
	assert.Equal(t, breaker.StateHalfOpen, cb.State())
	assert.Equal(t, uint32(3), cb.Snapshot().Probes)

	close(release)
	wg.Wait()

	assert.Equal(t, breaker.StateClosed, cb.State())
	assert.Equal(t, uint32(0), cb.FailureCount())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", breaker.StateClosed.String())
	assert.Equal(t, "open", breaker.StateOpen.String())
	assert.Equal(t, "half-open", breaker.StateHalfOpen.String())
	assert.Equal(t, "unknown", breaker.State(9).String())

	b, err := breaker.StateHalfOpen.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "half-open", string(b))

	_, err = breaker.State(9).MarshalText()
	assert.Error(t, err)
}
