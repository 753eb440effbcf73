// Package core holds the HTTP response types shared by every service of
// the control plane.
//
// Handlers return a Response. JSON and JSONWithStatus wrap success payloads
// in the standard envelope; JSONError turns any error into the matching
// status code and stable error code:
//
//	rate limit exceeded       429 rate_limit_exceeded
//	circuit open              503 circuit_open
//	downstream call failed    502 downstream_failed
//	unknown feature flag      404 flag_not_found
//	invalid feature flag      422 invalid_flag
//	ValidationError           422 validation_error
//
// Any HTTPError in the error chain takes precedence over the guard errors.
package core
