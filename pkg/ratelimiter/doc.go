// Package ratelimiter provides keyed token bucket rate limiting with an
// in-memory store and HTTP middleware.
//
// Each key owns one bucket holding at most Config.Capacity tokens that
// refills continuously at Config.RefillRate tokens per Config.RefillInterval
// (the default is 100 per minute). Buckets are golang.org/x/time/rate
// limiters kept in a MemoryStore that is created once and shared by every
// request; keys idle for longer than the idle TTL are evicted in the
// background.
//
// # Basic Usage
//
// Create a rate limiter with a memory store:
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.DefaultConfig(),
//		ratelimiter.WithName("api"),
//		ratelimiter.WithMetrics(sink),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if _, err := limiter.Check(ctx, "ip:203.0.113.7"); errors.Is(err, ratelimiter.ErrRateLimitExceeded) {
//		// rejected; no token was consumed
//	}
//
// # HTTP Middleware
//
// Use the provided middleware for HTTP rate limiting:
//
//	r := chi.NewRouter()
//	r.Use(clientip.MiddlewareWith(clientip.Config{}.Resolver()))
//	r.Use(ratelimiter.Middleware(limiter, ratelimiter.ByIP()))
//
// ByIP keys on the address resolved by clientip.MiddlewareWith, or on
// RemoteAddr when that middleware is absent. Forwarding headers only count
// when the resolver was configured to trust them.
//
// The middleware automatically sets standard rate limit headers:
//   - X-RateLimit-Limit: Maximum tokens
//   - X-RateLimit-Remaining: Tokens remaining
//   - X-RateLimit-Reset: Unix timestamp when the bucket is full again
//
// Rejected requests get a Retry-After header and a 429 JSON body with the
// code "rate_limit_exceeded".
//
// # Composite Key Functions
//
// Combine multiple key extractors for complex rate limiting scenarios:
//
//	keyFunc := ratelimiter.Composite(
//		ratelimiter.ByHeader("X-API-Key"),
//		ratelimiter.ByIP(),
//	)
//
// Keys longer than 64 characters are automatically hashed using FNV-1a
// to prevent unbounded storage growth.
//
// # Administration
//
// Status reports a bucket without consuming a token and Reset refills it:
//
//	res, _ := limiter.Status(ctx, "ip:203.0.113.7")
//	_ = limiter.Reset(ctx, "ip:203.0.113.7")
//
// Idle keys are evicted after RATE_LIMIT_IDLE_TTL (one hour by default);
// an interval of 0 disables the background sweep.
//
// # Thread Safety
//
// A Bucket and its MemoryStore are safe for concurrent use. The
// check-and-consume for a key is atomic, so concurrent requests never
// over-admit when a single token remains. A rejected request consumes
// nothing.
package ratelimiter
