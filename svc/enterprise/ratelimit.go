package enterprise

import (
	"time"

	"github.com/dmitrymomot/controlplane/core"
	"github.com/dmitrymomot/controlplane/handler"
	"github.com/dmitrymomot/controlplane/pkg/audit"
	"github.com/dmitrymomot/controlplane/pkg/ratelimiter"
)

type RateLimitKeyRequest struct {
	Key string `path:"key" json:"-"`
}

// RateLimitStatus is the caller's bucket without consuming a token.
type RateLimitStatus struct {
	Key       string    `json:"key"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

const anonymousKey = "anonymous"

func (s *Service) rateLimitStatus(ctx handler.Context, _ struct{}) core.Response {
	key := ratelimiter.ByIP()(ctx.Request())
	if key == "" {
		key = anonymousKey
	}

	res, err := s.guards.Limiter.Status(ctx, key)
	if err != nil {
		return core.JSONError(err)
	}
	return core.JSON("rate_limit", RateLimitStatus{
		Key:       key,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
	}, nil)
}

func (s *Service) rateLimitReset(ctx handler.Context, req RateLimitKeyRequest) core.Response {
	if err := s.guards.Limiter.Reset(ctx, req.Key); err != nil {
		return core.JSONError(err)
	}
	s.record(ctx, ActionRateLimitReset, audit.WithResource("rate_limit_key", req.Key))
	return core.Empty()
}
