package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mountable is a service that exposes its own router.
type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount under /api/v1.
// Each service is optional and will only be mounted if provided.
type RouterOptions struct {
	Enterprise Mountable

	// Middlewares run for every mounted service, e.g. the rate limiter.
	Middlewares []func(http.Handler) http.Handler
}

// Router creates the versioned API router.
//
// Example:
//
//	svc, _ := enterprise.NewService(guards, authz)
//
//	r := chi.NewRouter()
//	r.Mount("/api", api.Router(api.RouterOptions{
//	    Enterprise:  svc,
//	    Middlewares: []func(http.Handler) http.Handler{limit},
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(opts.Middlewares...)
		if opts.Enterprise != nil {
			v1.Mount("/enterprise", opts.Enterprise.Handle())
		}
	})

	return r
}
