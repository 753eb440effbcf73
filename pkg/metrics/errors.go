package metrics

import "errors"

// ErrRegistration indicates a metric vector could not be registered.
var ErrRegistration = errors.New("metric registration failed")
