package enterprise

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/controlplane/core"
	"github.com/dmitrymomot/controlplane/handler"
	"github.com/dmitrymomot/controlplane/pkg/audit"
	"github.com/dmitrymomot/controlplane/pkg/binder"
	"github.com/dmitrymomot/controlplane/pkg/logger"
	"github.com/dmitrymomot/controlplane/pkg/metrics"
	"github.com/dmitrymomot/controlplane/pkg/rbac"
)

// Audit actions recorded by the service itself. Flag mutations are audited
// by the feature engine.
const (
	ActionListFlags      = "feature_flag.list"
	ActionBreakerReset   = "circuit_breaker.reset"
	ActionRateLimitReset = "rate_limit.reset"
	ActionViewAuditTrail = "audit.view_trail"
)

// Service exposes the guards over HTTP under /api/v1/enterprise.
type Service struct {
	guards       Guards
	authz        *rbac.Authorizer
	audit        audit.Logger
	reader       *audit.Reader
	downstream   Downstream
	metrics      metrics.Sink
	log          *slog.Logger
	errorHandler handler.ErrorHandler
}

// Option configures a Service.
type Option func(*Service)

// WithAuditLogger records admin actions. Without it they are not audited.
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.audit = l
		}
	}
}

// WithAuditReader enables the audit trail route.
func WithAuditReader(r *audit.Reader) Option {
	return func(s *Service) {
		s.reader = r
	}
}

// WithDownstream sets the dependency exercised by the breaker demo route.
// It defaults to SimulatedDownstream(DefaultFailureRate, nil).
func WithDownstream(d Downstream) Option {
	return func(s *Service) {
		if d != nil {
			s.downstream = d
		}
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.metrics = sink
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService validates the guards and builds the service.
func NewService(guards Guards, authz *rbac.Authorizer, opts ...Option) (*Service, error) {
	if err := guards.Validate(); err != nil {
		return nil, err
	}
	if authz == nil {
		return nil, ErrMissingAuthorizer
	}

	s := &Service{
		guards:     guards,
		authz:      authz,
		audit:      nopAudit{},
		downstream: SimulatedDownstream(DefaultFailureRate, nil),
		metrics:    metrics.Noop{},
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errorHandler = handler.NewErrorHandler(s.log)

	return s, nil
}

// Handle returns the service router. Callers are identified from the
// gateway headers by HeaderIdentity.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(HeaderIdentity)

	r.Route("/feature-flags", func(r chi.Router) {
		r.Get("/", wrap(s, s.listFlags, requirePermission[ListFlagsRequest](s, rbac.PermFlagsRead)))
		r.Get("/{name}", wrap(s, s.getFlag, requirePermission[FlagRequest](s, rbac.PermFlagsRead)))
		r.Put("/{name}", wrap(s, s.putFlag, requirePermission[PutFlagRequest](s, rbac.PermFlagsWrite)))
		r.Delete("/{name}", wrap(s, s.deleteFlag, requirePermission[FlagRequest](s, rbac.PermFlagsWrite)))
		r.Post("/{name}/toggle", wrap(s, s.toggleFlag, requirePermission[FlagRequest](s, rbac.PermFlagsWrite)))
		r.Put("/{name}/rollout", wrap(s, s.setRollout, requirePermission[RolloutRequest](s, rbac.PermFlagsWrite)))
		r.Get("/{name}/check", wrap(s, s.checkFlag, requireIdentity[FlagRequest]()))
	})
	r.Get("/features", wrap(s, s.features, requireIdentity[struct{}]()))

	r.Route("/circuit-breaker", func(r chi.Router) {
		r.Get("/", wrap[struct{}](s, s.breakerStatus))
		r.Post("/reset", wrap(s, s.breakerReset, requirePermission[struct{}](s, rbac.PermBreakerReset)))
		r.Get("/demo", wrap[struct{}](s, s.breakerDemo))
	})

	r.Route("/rate-limit", func(r chi.Router) {
		r.Get("/", wrap[struct{}](s, s.rateLimitStatus))
		r.Delete("/{key}", wrap(s, s.rateLimitReset, requirePermission[RateLimitKeyRequest](s, rbac.PermRateLimitReset)))
	})

	r.Get("/audit/users/{id}", wrap(s, s.auditTrail, requirePermission[AuditTrailRequest](s, rbac.PermAuditRead)))

	return r
}

var (
	bindPath  = binder.Path()
	bindQuery = binder.Query()
	bindJSON  = binder.JSON()
)

// wrap binds path, query and JSON body values into R and routes errors
// through the service error handler.
func wrap[R any](s *Service, h handler.HandlerFunc[R], decorators ...handler.Decorator[R]) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[R](bindPath, bindQuery, bindJSON),
		handler.WithDecorators(decorators...),
		handler.WithErrorHandler[R](s.errorHandler),
	)
}

// requireIdentity rejects anonymous callers with 401.
func requireIdentity[R any]() handler.Decorator[R] {
	return func(next handler.HandlerFunc[R]) handler.HandlerFunc[R] {
		return func(ctx handler.Context, req R) core.Response {
			if _, ok := IdentityFromContext(ctx); !ok {
				return core.JSONError(core.ErrUnauthorized)
			}
			return next(ctx, req)
		}
	}
}

// requirePermission rejects anonymous callers with 401 and callers whose
// roles do not grant permission with 403.
func requirePermission[R any](s *Service, permission string) handler.Decorator[R] {
	return func(next handler.HandlerFunc[R]) handler.HandlerFunc[R] {
		return requireIdentity[R]()(func(ctx handler.Context, req R) core.Response {
			if err := s.authz.CanFromContext(ctx, permission); err != nil {
				s.log.WarnContext(ctx, "permission denied",
					slog.String("permission", permission),
					logger.UserID(UserID(ctx)),
					logger.Component("enterprise"),
				)
				return core.JSONError(errors.Join(core.ErrForbidden, err))
			}
			return next(ctx, req)
		})
	}
}

// record writes an audit event; failures are logged and swallowed.
func (s *Service) record(ctx context.Context, action string, opts ...audit.EventOption) {
	if err := s.audit.Log(ctx, action, opts...); err != nil {
		s.log.WarnContext(ctx, "audit event dropped",
			logger.Action(action),
			logger.Error(err),
			logger.Component("enterprise"),
		)
	}
}

type nopAudit struct{}

func (nopAudit) Log(context.Context, string, ...audit.EventOption) error { return nil }

func (nopAudit) LogError(context.Context, string, error, ...audit.EventOption) error { return nil }
