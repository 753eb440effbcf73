package enterprise

import "errors"

var (
	ErrMissingGuard      = errors.New("enterprise: missing guard")
	ErrMissingAuthorizer = errors.New("enterprise: missing authorizer")
	ErrSimulatedFailure  = errors.New("service unavailable")
)
