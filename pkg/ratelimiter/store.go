package ratelimiter

import "context"

// Store holds token bucket state per key.
type Store interface {
	// ConsumeTokens atomically takes tokens from the bucket for key. When the
	// bucket holds fewer than tokens, nothing is consumed and the result is
	// not allowed. A zero token count only reports the current state.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (*Result, error)

	// Reset clears the rate limit state for the given key.
	Reset(ctx context.Context, key string) error
}
