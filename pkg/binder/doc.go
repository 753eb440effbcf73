// Package binder decodes HTTP requests into typed request structs.
//
// JSON reads a strict, size-limited JSON body. Query and Path fill fields
// tagged `query:"..."` and `path:"..."` from the URL query and chi route
// parameters. Binders are composed through handler.WithBinders; a binder
// that does not apply to a request returns ErrBinderNotApplicable and is
// skipped.
//
//	type SetRolloutRequest struct {
//		Name       string  `path:"name"`
//		Percentage float64 `json:"percentage"`
//	}
//
//	r.Put("/flags/{name}/rollout", handler.Wrap(setRollout,
//		handler.WithBinders(binder.Path(), binder.JSON()),
//	))
package binder
