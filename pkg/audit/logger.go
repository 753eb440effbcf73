package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Extractor returns a value carried by ctx and whether it was present.
type Extractor func(context.Context) (string, bool)

type logger struct {
	storage            Storage
	userIDExtractor    Extractor
	requestIDExtractor Extractor
	ipExtractor        Extractor
	now                func() time.Time
}

// Option configures the logger returned by NewLogger.
type Option func(*logger)

// Context extractors populate events from the request context.
// A missing value leaves the corresponding event field empty.

func WithUserIDExtractor(fn Extractor) Option {
	return func(l *logger) {
		l.userIDExtractor = fn
	}
}

func WithRequestIDExtractor(fn Extractor) Option {
	return func(l *logger) {
		l.requestIDExtractor = fn
	}
}

func WithIPExtractor(fn Extractor) Option {
	return func(l *logger) {
		l.ipExtractor = fn
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates a new audit logger
func NewLogger(storage Storage, opts ...Option) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	l := &logger{
		storage: storage,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Log records a successful action
func (l *logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultSuccess)
	return l.store(ctx, event, opts)
}

// LogError records a failed action
func (l *logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultError)
	if err != nil {
		event.Error = err.Error()
	}
	return l.store(ctx, event, opts)
}

func (l *logger) store(ctx context.Context, event Event, opts []EventOption) error {
	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}

	return l.storage.Store(ctx, event)
}

func (l *logger) newEvent(ctx context.Context, action string, result Result) Event {
	event := Event{
		ID:        uuid.NewString(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now().UTC(),
	}

	if v, ok := extract(ctx, l.userIDExtractor); ok {
		event.UserID = v
	}
	if v, ok := extract(ctx, l.requestIDExtractor); ok {
		event.RequestID = v
	}
	if v, ok := extract(ctx, l.ipExtractor); ok {
		event.IP = v
	}

	return event
}

func extract(ctx context.Context, fn Extractor) (string, bool) {
	if fn == nil {
		return "", false
	}
	return fn(ctx)
}
