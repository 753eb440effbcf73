// Package httpserver runs an http.Handler with sane timeouts, graceful
// shutdown and health probes.
//
// Server binds its listener before reporting start, serves until the
// context is cancelled or SIGINT/SIGTERM arrives, then shuts down within
// the configured timeout and runs the registered stop hooks, which is where
// callers flush background writers. Construction goes through New with
// functional options or NewFromConfig with an HTTP_* environment Config.
//
// LivenessHandler and ReadinessHandler serve JSON health probes; readiness
// runs a list of named dependency checks such as pg.Healthcheck.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
package httpserver
