package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/controlplane/modules/api"
)

type echoService struct{}

func (echoService) Handle() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("enterprise"))
	})
}

func TestRouter(t *testing.T) {
	t.Parallel()

	tagged := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Seen", "1")
			next.ServeHTTP(w, r)
		})
	}

	r := api.Router(api.RouterOptions{
		Enterprise:  echoService{},
		Middlewares: []func(http.Handler) http.Handler{tagged},
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/enterprise/feature-flags", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "enterprise", rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Seen"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_NothingMounted(t *testing.T) {
	t.Parallel()

	r := api.Router(api.RouterOptions{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/enterprise/features", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
