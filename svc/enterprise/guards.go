package enterprise

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/dmitrymomot/controlplane/pkg/breaker"
	"github.com/dmitrymomot/controlplane/pkg/feature"
	"github.com/dmitrymomot/controlplane/pkg/ratelimiter"
)

// Guards bundles the three process-wide guards. It is built once at start
// and shared by every consumer.
type Guards struct {
	Breaker *breaker.Breaker
	Flags   *feature.Engine
	Limiter *ratelimiter.Bucket
}

// Validate reports which guard is missing.
func (g Guards) Validate() error {
	var errs []error
	if g.Breaker == nil {
		errs = append(errs, errors.New("circuit breaker is nil"))
	}
	if g.Flags == nil {
		errs = append(errs, errors.New("feature flag engine is nil"))
	}
	if g.Limiter == nil {
		errs = append(errs, errors.New("rate limiter is nil"))
	}
	if len(errs) > 0 {
		return errors.Join(ErrMissingGuard, errors.Join(errs...))
	}
	return nil
}

// Downstream is a dependency call protected by the circuit breaker.
type Downstream func(ctx context.Context) error

// DefaultFailureRate is the failure probability of SimulatedDownstream.
const DefaultFailureRate = 0.3

// SimulatedDownstream fails with ErrSimulatedFailure with probability
// failureRate. It stands in for a real dependency when none is configured.
// rnd defaults to math/rand/v2.
func SimulatedDownstream(failureRate float64, rnd func() float64) Downstream {
	if rnd == nil {
		rnd = rand.Float64
	}
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rnd() < failureRate {
			return ErrSimulatedFailure
		}
		return nil
	}
}
