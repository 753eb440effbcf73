// Package enterprise serves the control plane's admin and caller-facing
// routes on top of the shared Guards.
//
// Callers are identified by the upstream gateway through the X-User-ID and
// X-User-Roles headers. HeaderIdentity turns them into an Identity in the
// request context, which also feeds flag evaluation (user id and the
// "user_tier" attribute) and the audit logger. Privileged routes are
// checked against rbac permissions; the guards themselves never look at
// the caller.
//
// Routes, relative to the mount point:
//
//	GET    /feature-flags                 feature_flags.read
//	GET    /feature-flags/{name}          feature_flags.read
//	PUT    /feature-flags/{name}          feature_flags.write
//	DELETE /feature-flags/{name}          feature_flags.write
//	POST   /feature-flags/{name}/toggle   feature_flags.write
//	PUT    /feature-flags/{name}/rollout  feature_flags.write
//	GET    /feature-flags/{name}/check    any identified caller
//	GET    /features                      any identified caller
//	GET    /circuit-breaker               public
//	POST   /circuit-breaker/reset         circuit_breaker.reset
//	GET    /circuit-breaker/demo          public
//	GET    /rate-limit                    public
//	DELETE /rate-limit/{key}              rate_limit.reset
//	GET    /audit/users/{id}              audit.read
package enterprise
