// Package rbac maps caller roles onto control plane permissions.
//
// Roles carry dot-separated permissions and may inherit from other roles.
// A trailing wildcard grants a namespace ("feature_flags.*") and a bare "*"
// grants everything. The Authorizer resolves inheritance once and then
// answers checks without locking.
//
//	auth, err := rbac.NewAuthorizer(ctx, rbac.NewMemorySource(rbac.DefaultRoles()))
//	if err != nil {
//		return err
//	}
//
//	ctx = rbac.WithRoles(ctx, []string{"operator"})
//	if err := auth.CanFromContext(ctx, rbac.PermBreakerReset); err != nil {
//		// 403
//	}
package rbac
