package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/controlplane/pkg/logger"
	"github.com/dmitrymomot/controlplane/pkg/metrics"
)

// RateLimiter defines the interface for rate limiting implementations.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	AllowN(ctx context.Context, key string, n int) (*Result, error)
}

// Bucket implements a token bucket rate limiter.
type Bucket struct {
	store   Store
	config  Config
	name    string
	metrics metrics.Sink
	log     *slog.Logger
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithName sets the limiter label used in metrics and logs.
func WithName(name string) Option {
	return func(tb *Bucket) {
		if name != "" {
			tb.name = name
		}
	}
}

// WithMetrics sets the sink for admitted and rejected counters.
func WithMetrics(sink metrics.Sink) Option {
	return func(tb *Bucket) {
		if sink != nil {
			tb.metrics = sink
		}
	}
}

// WithLogger sets the logger used for rejections.
func WithLogger(l *slog.Logger) Option {
	return func(tb *Bucket) {
		if l != nil {
			tb.log = l
		}
	}
}

// NewBucket creates a new token bucket rate limiter.
func NewBucket(store Store, config Config, opts ...Option) (*Bucket, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	tb := &Bucket{
		store:   store,
		config:  config,
		name:    "default",
		metrics: metrics.Noop{},
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(tb)
	}
	return tb, nil
}

// Config returns the bucket configuration.
func (tb *Bucket) Config() Config { return tb.config }

func (tb *Bucket) Allow(ctx context.Context, key string) (*Result, error) {
	return tb.AllowN(ctx, key, 1)
}

// AllowN takes n tokens for key. A rejected request consumes nothing and is
// reported through Result.Allowed, not through the error.
func (tb *Bucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}
	if n > tb.config.Capacity {
		return nil, fmt.Errorf("%w: %d exceeds capacity %d", ErrInvalidTokenCount, n, tb.config.Capacity)
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	res, err := tb.store.ConsumeTokens(ctx, key, n, tb.config)
	if err != nil {
		return nil, err
	}

	labels := metrics.Labels{"limiter": tb.name}
	if res.Allowed {
		tb.metrics.IncrementCounter("rate_limit_admitted_total", labels)
	} else {
		tb.metrics.IncrementCounter("rate_limit_rejected_total", labels)
		tb.log.DebugContext(ctx, "rate limit exceeded",
			logger.Component(tb.name),
			logger.Key(key),
			logger.Duration(res.RetryAfter()),
		)
	}
	return res, nil
}

// Check admits or rejects a single request for key. On reject it returns
// the result together with ErrRateLimitExceeded.
func (tb *Bucket) Check(ctx context.Context, key string) (*Result, error) {
	res, err := tb.Allow(ctx, key)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		return res, ErrRateLimitExceeded
	}
	return res, nil
}

// Status returns the current state without consuming tokens.
func (tb *Bucket) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return tb.store.ConsumeTokens(ctx, key, 0, tb.config)
}

func (tb *Bucket) Reset(ctx context.Context, key string) error {
	return tb.store.Reset(ctx, key)
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}
