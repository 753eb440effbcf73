package ratelimiter

import "errors"

var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidTokenCount indicates that the requested token count is invalid.
	ErrInvalidTokenCount = errors.New("invalid token count")

	// ErrRateLimitExceeded is returned by Check when the key has no tokens left.
	// No token is consumed by a rejected check.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrEmptyKey is returned when the rate limit key is empty.
	ErrEmptyKey = errors.New("empty rate limit key")
)
