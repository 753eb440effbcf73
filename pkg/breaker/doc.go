// Package breaker implements a circuit breaker for calls to unreliable
// downstream dependencies.
//
// A Breaker starts Closed and passes calls through. Consecutive failures are
// counted; when the count reaches Config.FailureThreshold the breaker opens
// and refuses calls with ErrCircuitOpen without running them. Once
// Config.RecoveryTimeout has elapsed since the last failure, the next call
// moves the breaker to HalfOpen and is admitted as a probe. At most
// Config.HalfOpenMaxCalls probes run concurrently. A single successful probe
// closes the breaker, a single failed probe opens it again.
//
// # Usage
//
//	cb := breaker.New(breaker.DefaultConfig(),
//		breaker.WithName("redis"),
//		breaker.WithLogger(log),
//		breaker.WithMetrics(sink),
//	)
//
//	user, err := breaker.Call(cb, func() (*User, error) {
//		return repo.Find(ctx, id)
//	})
//	switch {
//	case errors.Is(err, breaker.ErrCircuitOpen):
//		// fail fast, serve a fallback
//	case errors.Is(err, breaker.ErrOperationFailed):
//		// the downstream failed; errors.Unwrap(err) is the cause
//	}
//
// # Concurrency
//
// Admission (timeout check, HalfOpen transition and probe accounting) and
// outcome recording are each a single critical section. The operation itself
// runs outside the lock. Every state change starts a new generation, and
// outcomes of calls admitted in an earlier generation are discarded, so a
// burst of in-flight failures cannot open the circuit twice for one period.
//
// # Observability
//
// Transitions are logged (error level when opening) and counted in
// circuit_breaker_transitions_total. Refused calls increment
// circuit_breaker_rejected_total and call latency is recorded in
// circuit_breaker_call_duration_seconds.
package breaker
