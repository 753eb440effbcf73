package ratelimiter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/controlplane/pkg/clientip"
	"github.com/dmitrymomot/controlplane/pkg/ratelimiter"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_HeadersAndReject(t *testing.T) {
	t.Parallel()

	tb := newBucket(t, ratelimiter.Config{Capacity: 2, RefillRate: 2, RefillInterval: time.Minute}, newFakeClock())
	h := clientip.Middleware(ratelimiter.Middleware(tb, ratelimiter.ByIP())(okHandler()))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, first.Header().Get("Retry-After"))

	second := send()
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := send()
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "30", third.Header().Get("Retry-After"))
	assert.Equal(t, "application/json; charset=utf-8", third.Header().Get("Content-Type"))

	var body struct {
		Code  string `json:"code"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(third.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body.Code)
	assert.Equal(t, "rate_limit_exceeded", body.Error.Code)
}

func TestMiddleware_KeysAreIsolated(t *testing.T) {
	t.Parallel()

	tb := newBucket(t, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour}, newFakeClock())
	h := ratelimiter.Middleware(tb, ratelimiter.ByIP())(okHandler())

	for _, addr := range []string{"192.0.2.1:1", "192.0.2.2:1", "192.0.2.3:1"} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code, addr)
	}
}

func TestMiddleware_SpoofedForwardedForSharesBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		wrap func(http.Handler) http.Handler
	}{
		{
			name: "resolver without trusted headers",
			wrap: clientip.MiddlewareWith(clientip.Config{}.Resolver()),
		},
		{
			name: "no resolver in chain",
			wrap: func(next http.Handler) http.Handler { return next },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			store := ratelimiter.NewMemoryStore(
				ratelimiter.WithClock(clock.Now),
				ratelimiter.WithCleanupInterval(0),
			)
			t.Cleanup(store.Close)
			tb, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 2, RefillRate: 2, RefillInterval: time.Hour})
			require.NoError(t, err)

			h := tt.wrap(ratelimiter.Middleware(tb, ratelimiter.ByIP())(okHandler()))

			admitted, rejected := 0, 0
			for i := 0; i < 50; i++ {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.RemoteAddr = "203.0.113.7:4000"
				r.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.%d.%d", i/250, i%250+1))
				r.Header.Set("X-Real-IP", fmt.Sprintf("10.1.0.%d", i+1))
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, r)
				switch rec.Code {
				case http.StatusOK:
					admitted++
				case http.StatusTooManyRequests:
					rejected++
				}
			}

			assert.Equal(t, 2, admitted)
			assert.Equal(t, 48, rejected)
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestMiddleware_TrustedHeaderKeysClients(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := ratelimiter.NewMemoryStore(
		ratelimiter.WithClock(clock.Now),
		ratelimiter.WithCleanupInterval(0),
	)
	t.Cleanup(store.Close)
	tb, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	res := clientip.Config{TrustedHeaders: []string{"X-Real-IP"}}.Resolver()
	h := clientip.MiddlewareWith(res)(ratelimiter.Middleware(tb, ratelimiter.ByIP())(okHandler()))

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "203.0.113.7:4000"
		r.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code, ip)
	}
	assert.Equal(t, 2, store.Len())
}

func TestMiddleware_FallbackKey(t *testing.T) {
	t.Parallel()

	tb := newBucket(t, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour}, newFakeClock())
	h := ratelimiter.Middleware(tb, ratelimiter.ByHeader("X-API-Key"),
		ratelimiter.WithFallbackKey("no-key"),
	)(okHandler())

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

var errStoreDown = errors.New("store down")

type failingStore struct{}

func (failingStore) ConsumeTokens(context.Context, string, int, ratelimiter.Config) (*ratelimiter.Result, error) {
	return nil, errStoreDown
}

func (failingStore) Reset(context.Context, string) error { return errStoreDown }

func TestMiddleware_StoreFailure(t *testing.T) {
	t.Parallel()

	tb, err := ratelimiter.NewBucket(failingStore{}, ratelimiter.DefaultConfig())
	require.NoError(t, err)

	called := false
	h := ratelimiter.Middleware(tb, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, called)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestMiddleware_CustomResponder(t *testing.T) {
	t.Parallel()

	tb := newBucket(t, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour}, newFakeClock())

	var gotResult *ratelimiter.Result
	h := ratelimiter.Middleware(tb, func(*http.Request) string { return "fixed" },
		ratelimiter.WithErrorResponder(func(w http.ResponseWriter, r *http.Request, res *ratelimiter.Result, err error) {
			gotResult = res
			w.WriteHeader(http.StatusServiceUnavailable)
		}),
	)(okHandler())

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, gotResult)
	assert.False(t, gotResult.Allowed)
}

func TestComposite(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1"
	r.Header.Set("X-API-Key", "abc")

	assert.Equal(t, "x-api-key:abc:ip:192.0.2.1",
		ratelimiter.Composite(ratelimiter.ByHeader("X-API-Key"), ratelimiter.ByIP())(r))

	assert.Equal(t, "ip:192.0.2.1",
		ratelimiter.Composite(ratelimiter.ByHeader("X-Missing"), ratelimiter.ByIP())(r))

	assert.Empty(t, ratelimiter.Composite(ratelimiter.ByHeader("X-Missing"))(r))

	r.Header.Set("X-API-Key", strings.Repeat("k", 100))
	hashed := ratelimiter.Composite(ratelimiter.ByHeader("X-API-Key"), ratelimiter.ByIP())(r)
	assert.LessOrEqual(t, len(hashed), 13)
	assert.Equal(t, hashed, ratelimiter.Composite(ratelimiter.ByHeader("X-API-Key"), ratelimiter.ByIP())(r))
}
