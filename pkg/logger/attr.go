package logger

import (
	"fmt"
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// Role records a role name under the key "role".
// If role is nil, it returns an empty Attr.
func Role(role any) slog.Attr {
	if role == nil {
		return slog.Attr{}
	}
	return slog.Any("role", role)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// CorrelationID records the correlation identifier under the key "correlation_id".
// If id is nil, it returns an empty Attr.
func CorrelationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("correlation_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Action records an audited action under the key "action".
func Action(name string) slog.Attr {
	return slog.String("action", name)
}

// Breaker records a circuit breaker name under the key "breaker".
func Breaker(name string) slog.Attr {
	return slog.String("breaker", name)
}

// Flag records a feature flag name under the key "flag".
func Flag(name string) slog.Attr {
	return slog.String("flag", name)
}

// Key records a rate limiting key under the key "key".
func Key(key string) slog.Attr {
	return slog.String("key", key)
}

// Transition records a state change as a "state" group with from/to values.
func Transition(from, to fmt.Stringer) slog.Attr {
	return Group("state",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}
