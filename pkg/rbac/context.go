package rbac

import (
	"context"
	"slices"
)

type rolesCtxKey struct{}

// WithRoles stores the caller's roles in the context.
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesCtxKey{}, slices.Clone(roles))
}

// RolesFromContext returns the caller's roles.
func RolesFromContext(ctx context.Context) ([]string, bool) {
	roles, ok := ctx.Value(rolesCtxKey{}).([]string)
	return roles, ok
}

// HasRole reports whether the caller in ctx holds role.
func HasRole(ctx context.Context, role string) bool {
	roles, _ := RolesFromContext(ctx)
	return slices.Contains(roles, role)
}
