package audit

import "errors"

var (
	// ErrStorageNotAvailable indicates the storage backend is unavailable or closed
	ErrStorageNotAvailable = errors.New("storage backend is unavailable")

	// ErrEventValidation indicates event validation failed
	ErrEventValidation = errors.New("event validation failed")

	// ErrBufferFull indicates the async buffer is full and the event was dropped
	ErrBufferFull = errors.New("async buffer is full")

	// ErrInvalidCriteria indicates a query could not be built from the criteria
	ErrInvalidCriteria = errors.New("invalid audit criteria")
)
