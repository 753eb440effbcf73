package feature

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/controlplane/pkg/audit"
	"github.com/dmitrymomot/controlplane/pkg/logger"
	"github.com/dmitrymomot/controlplane/pkg/metrics"
)

// Audit actions emitted by Engine mutations.
const (
	ActionSet     = "feature_flag.set"
	ActionDelete  = "feature_flag.delete"
	ActionToggle  = "feature_flag.toggle"
	ActionRollout = "feature_flag.rollout"
)

const (
	metricEvaluations = "feature_flag_evaluations_total"
	auditResource     = "feature_flag"
	unknownFlagLabel  = "_unknown"
)

// Engine combines a Store and an Evaluator, and audits every mutation.
type Engine struct {
	store     Store
	evaluator *Evaluator
	audit     audit.Logger
	metrics   metrics.Sink
	log       *slog.Logger

	userID UserIDExtractor
	attrs  AttributesExtractor
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator replaces the default evaluator.
func WithEvaluator(ev *Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithAuditLogger records flag mutations. Audit failures are logged only.
func WithAuditLogger(l audit.Logger) Option {
	return func(e *Engine) {
		e.audit = l
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.metrics = sink
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithUserIDExtractor sets how IsEnabled finds the user when ForUser is not given.
func WithUserIDExtractor(fn UserIDExtractor) Option {
	return func(e *Engine) {
		e.userID = fn
	}
}

// WithAttributesExtractor sets how IsEnabled finds attributes when WithAttributes is not given.
func WithAttributesExtractor(fn AttributesExtractor) Option {
	return func(e *Engine) {
		e.attrs = fn
	}
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreNotInitialized
	}

	e := &Engine{
		store:     store,
		evaluator: NewEvaluator(),
		metrics:   metrics.Noop{},
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type evalRequest struct {
	userID   string
	hasUser  bool
	attrs    Attributes
	hasAttrs bool
}

// EvalOption supplies caller data to IsEnabled.
type EvalOption func(*evalRequest)

// ForUser evaluates for the given user id. An empty id means anonymous.
func ForUser(id string) EvalOption {
	return func(r *evalRequest) {
		r.userID = id
		r.hasUser = true
	}
}

// WithAttributes evaluates conditions against attrs.
func WithAttributes(attrs Attributes) EvalOption {
	return func(r *evalRequest) {
		r.attrs = attrs
		r.hasAttrs = true
	}
}

// IsEnabled reports whether the named flag is on for the caller.
// Missing flags are off.
func (e *Engine) IsEnabled(ctx context.Context, name string, opts ...EvalOption) bool {
	var req evalRequest
	for _, opt := range opts {
		opt(&req)
	}
	if !req.hasUser && e.userID != nil {
		req.userID = e.userID(ctx)
	}
	if !req.hasAttrs && e.attrs != nil {
		req.attrs = e.attrs(ctx)
	}

	flag, ok := e.store.Get(name)
	if !ok {
		e.metrics.IncrementCounter(metricEvaluations, metrics.Labels{"flag": unknownFlagLabel, "result": "not_found"})
		return false
	}

	enabled := e.evaluator.Evaluate(flag, req.userID, req.attrs)

	result := "disabled"
	if enabled {
		result = "enabled"
	}
	e.metrics.IncrementCounter(metricEvaluations, metrics.Labels{"flag": name, "result": result})

	return enabled
}

// GetFlag returns a copy of the named flag.
func (e *Engine) GetFlag(_ context.Context, name string) (*Flag, error) {
	flag, ok := e.store.Get(name)
	if !ok {
		return nil, ErrFlagNotFound
	}
	return flag, nil
}

// ListFlags returns all flags sorted by name, optionally filtered by tags.
func (e *Engine) ListFlags(_ context.Context, tags ...string) []*Flag {
	return e.store.List(tags...)
}

// SetFlag creates or fully replaces a flag.
func (e *Engine) SetFlag(ctx context.Context, flag *Flag) error {
	if err := e.store.Set(flag); err != nil {
		return err
	}

	e.record(ctx, ActionSet, flag.Name,
		audit.WithMetadata("enabled", flag.Enabled),
		audit.WithMetadata("rollout_percentage", flag.RolloutPercentage),
	)
	e.log.InfoContext(ctx, "feature flag set", logger.Flag(flag.Name))
	return nil
}

// DeleteFlag removes the named flag.
func (e *Engine) DeleteFlag(ctx context.Context, name string) error {
	if !e.store.Delete(name) {
		return ErrFlagNotFound
	}

	e.record(ctx, ActionDelete, name)
	e.log.InfoContext(ctx, "feature flag deleted", logger.Flag(name))
	return nil
}

// ToggleFlag flips the Enabled field and returns the updated flag.
func (e *Engine) ToggleFlag(ctx context.Context, name string) (*Flag, error) {
	flag, err := e.store.Mutate(name, func(f *Flag) error {
		f.Enabled = !f.Enabled
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.record(ctx, ActionToggle, name, audit.WithMetadata("enabled", flag.Enabled))
	e.log.InfoContext(ctx, "feature flag toggled", logger.Flag(name), slog.Bool("enabled", flag.Enabled))
	return flag, nil
}

// SetRollout changes the rollout percentage of the named flag.
func (e *Engine) SetRollout(ctx context.Context, name string, percentage float64) (*Flag, error) {
	var previous float64
	flag, err := e.store.Mutate(name, func(f *Flag) error {
		previous = f.RolloutPercentage
		f.RolloutPercentage = percentage
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.record(ctx, ActionRollout, name,
		audit.WithMetadata("from", previous),
		audit.WithMetadata("to", percentage),
	)
	e.log.InfoContext(ctx, "feature flag rollout changed", logger.Flag(name),
		slog.Float64("from", previous), slog.Float64("to", percentage))
	return flag, nil
}

func (e *Engine) record(ctx context.Context, action, name string, opts ...audit.EventOption) {
	if e.audit == nil {
		return
	}
	opts = append(opts, audit.WithResource(auditResource, name))
	if err := e.audit.Log(ctx, action, opts...); err != nil {
		e.log.WarnContext(ctx, "audit event not recorded",
			logger.Action(action), logger.Flag(name), logger.Error(err))
	}
}
