package breaker

import "fmt"

// State is the position of a breaker in its state machine.
type State uint8

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state as its lowercase name.
func (s State) MarshalText() ([]byte, error) {
	if s > StateHalfOpen {
		return nil, fmt.Errorf("breaker: invalid state %d", s)
	}
	return []byte(s.String()), nil
}
