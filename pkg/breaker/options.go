package breaker

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/controlplane/pkg/metrics"
)

// Option configures a Breaker.
type Option func(*Breaker)

// WithName sets the name used in logs, metrics and errors.
func WithName(name string) Option {
	return func(b *Breaker) {
		if name != "" {
			b.name = name
		}
	}
}

// WithLogger sets the logger for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(b *Breaker) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetrics sets the sink for transition, rejection and latency metrics.
func WithMetrics(sink metrics.Sink) Option {
	return func(b *Breaker) {
		if sink != nil {
			b.metrics = sink
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithOnStateChange registers a callback invoked after every transition.
// It runs outside the breaker lock and may call back into the breaker.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		if fn != nil {
			b.onStateChange = append(b.onStateChange, fn)
		}
	}
}
