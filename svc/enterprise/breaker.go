package enterprise

import (
	"time"

	"github.com/dmitrymomot/controlplane/core"
	"github.com/dmitrymomot/controlplane/handler"
	"github.com/dmitrymomot/controlplane/pkg/audit"
	"github.com/dmitrymomot/controlplane/pkg/breaker"
)

// BreakerStatus is the public view of the circuit breaker.
type BreakerStatus struct {
	breaker.Snapshot
	FailureThreshold       uint32  `json:"failure_threshold"`
	RecoveryTimeoutSeconds float64 `json:"recovery_timeout_seconds"`
	HalfOpenMaxCalls       uint32  `json:"half_open_max_calls"`
}

// DemoResult reports one call through the breaker.
type DemoResult struct {
	Status       string        `json:"status"`
	Message      string        `json:"message"`
	Reason       string        `json:"reason,omitempty"`
	CircuitState breaker.State `json:"circuit_state"`
	FailureCount uint32        `json:"failure_count"`
}

func (s *Service) status() BreakerStatus {
	cfg := s.guards.Breaker.Config()
	return BreakerStatus{
		Snapshot:               s.guards.Breaker.Snapshot(),
		FailureThreshold:       cfg.FailureThreshold,
		RecoveryTimeoutSeconds: cfg.RecoveryTimeout.Seconds(),
		HalfOpenMaxCalls:       cfg.HalfOpenMaxCalls,
	}
}

func (s *Service) breakerStatus(_ handler.Context, _ struct{}) core.Response {
	return core.JSON("circuit_breaker", s.status(), nil)
}

func (s *Service) breakerReset(ctx handler.Context, _ struct{}) core.Response {
	before := s.guards.Breaker.State()
	s.guards.Breaker.Reset()
	s.record(ctx, ActionBreakerReset,
		audit.WithResource("circuit_breaker", s.guards.Breaker.Name()),
		audit.WithMetadata("previous_state", before.String()),
	)
	return core.JSON("circuit_breaker_reset", s.status(), nil)
}

// breakerDemo calls the downstream through the breaker. The outcome is
// reported in the body with 200; the reason carries the error code the call
// would map to.
func (s *Service) breakerDemo(ctx handler.Context, _ struct{}) core.Response {
	start := time.Now()
	err := s.guards.Breaker.Do(func() error {
		return s.downstream(ctx)
	})

	res := DemoResult{
		Status:       "success",
		Message:      "service call successful",
		CircuitState: s.guards.Breaker.State(),
		FailureCount: s.guards.Breaker.FailureCount(),
	}
	if err != nil {
		httpErr, _ := core.AsHTTPError(err)
		res.Status = "failed"
		res.Message = "circuit breaker prevented call or service failed"
		res.Reason = httpErr.Key
	}

	return core.JSON("circuit_breaker_demo", res, map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
