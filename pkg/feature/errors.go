package feature

import "errors"

// Predefined errors for the feature package.
var (
	// ErrFlagNotFound indicates that the requested feature flag was not found.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrInvalidFlag indicates that the provided flag parameters are invalid.
	ErrInvalidFlag = errors.New("invalid feature flag parameters")

	// ErrStoreNotInitialized indicates the engine was built without a store.
	ErrStoreNotInitialized = errors.New("feature store not initialized")

	// ErrInvalidSeed indicates a flag seed file could not be decoded.
	ErrInvalidSeed = errors.New("invalid feature flag seed")
)
