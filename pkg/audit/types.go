package audit

import (
	"context"
	"fmt"
	"time"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event represents a single audit log entry
type Event struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	IP         string         `json:"ip,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrEventValidation)
	}
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
// Used with Log and LogError methods to add metadata, resources, etc.
type EventOption func(*Event)

// Logger records administrative actions.
type Logger interface {
	Log(ctx context.Context, action string, opts ...EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...EventOption) error
}

// Storage persists a single event.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// BatchStorage persists several events in one round trip.
// Either all events are stored or none.
type BatchStorage interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// Querier finds stored events.
type Querier interface {
	Query(ctx context.Context, criteria Criteria) ([]Event, error)
}

// Counter is implemented by storages that can count without loading rows.
type Counter interface {
	Count(ctx context.Context, criteria Criteria) (int64, error)
}

// Criteria filters events. Zero fields do not filter.
// Results are ordered newest first.
type Criteria struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Result     Result
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

// Matches reports whether e satisfies every non-zero field of c.
func (c Criteria) Matches(e Event) bool {
	switch {
	case c.UserID != "" && e.UserID != c.UserID:
		return false
	case c.Action != "" && e.Action != c.Action:
		return false
	case c.Resource != "" && e.Resource != c.Resource:
		return false
	case c.ResourceID != "" && e.ResourceID != c.ResourceID:
		return false
	case c.Result != "" && e.Result != c.Result:
		return false
	case !c.StartTime.IsZero() && e.CreatedAt.Before(c.StartTime):
		return false
	case !c.EndTime.IsZero() && !e.CreatedAt.Before(c.EndTime):
		return false
	}
	return true
}
