package ratelimiter

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/controlplane/pkg/clientip"
)

// maxKeyLength is the maximum allowed length for a rate limit key
// to prevent excessively long storage keys.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request.
type KeyFunc func(r *http.Request) string

// ByIP keys requests by client IP. The IP stored by clientip.MiddlewareWith
// is used when present, so only the headers trusted there count; otherwise
// the key is the RemoteAddr IP and client headers are ignored.
func ByIP() KeyFunc {
	return func(r *http.Request) string {
		ip := clientip.GetIPFromContext(r.Context())
		if ip == "" {
			ip = clientip.RemoteIP(r)
		}
		if ip == "" {
			return ""
		}
		return "ip:" + ip
	}
}

// ByHeader keys requests by the value of header, e.g. an API key.
func ByHeader(header string) KeyFunc {
	return func(r *http.Request) string {
		v := strings.TrimSpace(r.Header.Get(header))
		if v == "" {
			return ""
		}
		return strings.ToLower(header) + ":" + v
	}
}

// Composite combines multiple key functions into one.
// Long keys (>64 chars) are hashed using FNV-1a for storage efficiency.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}

		if len(parts) == 0 {
			return ""
		}
		if len(parts) == 1 && len(parts[0]) <= maxKeyLength {
			return parts[0]
		}

		combined := strings.Join(parts, ":")
		if len(combined) > maxKeyLength {
			h := fnv.New64a()
			h.Write([]byte(combined))
			return strconv.FormatUint(h.Sum64(), 36)
		}
		return combined
	}
}

// ErrorResponder writes the response for a rejected request (err is nil) or
// for a limiter failure (result is nil).
type ErrorResponder func(w http.ResponseWriter, r *http.Request, result *Result, err error)

type middlewareConfig struct {
	responder ErrorResponder
	fallback  string
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithErrorResponder replaces the default JSON error responses.
func WithErrorResponder(fn ErrorResponder) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.responder = fn
		}
	}
}

// WithFallbackKey sets the key used when keyFunc returns an empty string.
// Without it such requests share the "anonymous" bucket.
func WithFallbackKey(key string) MiddlewareOption {
	return func(c *middlewareConfig) {
		if key != "" {
			c.fallback = key
		}
	}
}

// Middleware creates an HTTP middleware for rate limiting.
// Every response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; rejected requests also get Retry-After and a 429.
func Middleware(tb *Bucket, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		responder: defaultResponder,
		fallback:  "anonymous",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if keyFunc == nil {
		keyFunc = ByIP()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				key = cfg.fallback
			}

			result, err := tb.Allow(r.Context(), key)
			if err != nil {
				cfg.responder(w, r, nil, err)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result)))
				cfg.responder(w, r, result, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up so clients never retry too early.
func retryAfterSeconds(res *Result) int {
	return max(1, int(math.Ceil(res.RetryAfter().Seconds())))
}

type errorBody struct {
	Code  string      `json:"code"`
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func defaultResponder(w http.ResponseWriter, _ *http.Request, _ *Result, err error) {
	status := http.StatusTooManyRequests
	body := errorBody{
		Code:  "rate_limit_exceeded",
		Error: errorDetail{Code: "rate_limit_exceeded", Message: ErrRateLimitExceeded.Error()},
	}
	if err != nil {
		status = http.StatusInternalServerError
		body = errorBody{
			Code:  "internal_error",
			Error: errorDetail{Code: "internal_error", Message: http.StatusText(status)},
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
