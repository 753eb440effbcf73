package binder

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Query binds URL query parameters to struct fields tagged with `query`.
// Slices accept repeated and comma-separated values.
//
//	type ListFlagsRequest struct {
//		Tags []string `query:"tag"`
//	}
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}

// Path binds chi URL parameters to struct fields tagged with `path`.
// Outside a chi route it yields ErrBinderNotApplicable.
//
//	type GetFlagRequest struct {
//		Name string `path:"name"`
//	}
func Path() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			return ErrBinderNotApplicable
		}

		values := make(map[string][]string, len(rctx.URLParams.Keys))
		for i, key := range rctx.URLParams.Keys {
			if i < len(rctx.URLParams.Values) {
				values[key] = []string{rctx.URLParams.Values[i]}
			}
		}
		return bindToStruct(v, "path", values, ErrFailedToParsePath)
	}
}
