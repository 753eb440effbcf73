package ratelimiter

import "time"

// Result contains the result of a rate limit check.
type Result struct {
	Allowed   bool          // Whether the requested tokens were consumed
	Limit     int           // Maximum tokens (bucket capacity)
	Remaining int           // Whole tokens left after the decision
	ResetAt   time.Time     // When the bucket will be full again
	RetryIn   time.Duration // Wait until the rejected request could succeed
}

// RetryAfter returns how long to wait before the next request.
// Returns 0 if the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed || r.RetryIn < 0 {
		return 0
	}
	return r.RetryIn
}

// Config defines the token bucket configuration.
// The bucket holds at most Capacity tokens and refills continuously at
// RefillRate tokens per RefillInterval.
type Config struct {
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"100"`
	RefillRate     int           `env:"RATE_LIMIT_REFILL_RATE" envDefault:"100"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1m"`
}

// DefaultConfig allows 100 requests per minute with a burst of 100.
func DefaultConfig() Config {
	return Config{
		Capacity:       100,
		RefillRate:     100,
		RefillInterval: time.Minute,
	}
}

// tokensPerSecond is the continuous refill rate.
func (c Config) tokensPerSecond() float64 {
	return float64(c.RefillRate) / c.RefillInterval.Seconds()
}
