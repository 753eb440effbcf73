package breaker

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned when a call is refused without invoking the
	// operation, either because the breaker is open or because the half-open
	// probe limit is reached.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrOperationFailed matches any *OperationFailedError via errors.Is.
	ErrOperationFailed = errors.New("protected operation failed")
)

// OperationFailedError wraps the error returned by an admitted operation.
// The failure has already been recorded by the breaker when it is returned.
type OperationFailedError struct {
	Breaker string
	Err     error
}

func (e *OperationFailedError) Error() string {
	if e.Breaker == "" {
		return fmt.Sprintf("%s: %v", ErrOperationFailed, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrOperationFailed, e.Breaker, e.Err)
}

func (e *OperationFailedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrOperationFailed.
func (e *OperationFailedError) Is(target error) bool {
	return target == ErrOperationFailed
}

var errProbeLimit = fmt.Errorf("%w: half-open probe limit reached", ErrCircuitOpen)
