package handler

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/controlplane/core"
	"github.com/dmitrymomot/controlplane/pkg/logger"
	"github.com/dmitrymomot/controlplane/pkg/requestid"
)

// NewErrorHandler returns an ErrorHandler that logs err and renders it with
// core.JSONError. Client errors are logged at warn, server errors at error.
func NewErrorHandler(log *slog.Logger) ErrorHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return func(ctx Context, err error) {
		r := ctx.Request()
		httpErr, _ := core.AsHTTPError(err)

		level := slog.LevelError
		if httpErr.Code < http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", httpErr.Code),
			slog.String("code", httpErr.Key),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		if renderErr := core.JSONError(err).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.LogAttrs(r.Context(), slog.LevelError, "failed to render error response",
				logger.Error(renderErr),
				logger.Component("error_handler"),
			)
		}
	}
}
