// Package handler adapts typed request handlers to net/http.
//
// A HandlerFunc receives a Context and a request value decoded by the
// configured binders, and returns a core.Response. Wrap runs the binders in
// order, applies decorators and renders the response; binding and
// rendering errors go to the ErrorHandler, which by default writes the
// core.JSONError envelope.
//
//	type ToggleRequest struct {
//		Name string `path:"name"`
//	}
//
//	toggle := func(ctx handler.Context, req ToggleRequest) core.Response {
//		flag, err := engine.ToggleFlag(ctx, req.Name)
//		if err != nil {
//			return core.JSONError(err)
//		}
//		return core.JSON("flag_toggled", flag, nil)
//	}
//
//	r.Post("/feature-flags/{name}/toggle", handler.Wrap(toggle,
//		handler.WithBinders[ToggleRequest](binder.Path()),
//		handler.WithErrorHandler[ToggleRequest](handler.NewErrorHandler(log)),
//	))
package handler
