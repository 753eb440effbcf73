package rbac

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Authorizer answers permission checks for roles. Inherited permissions are
// resolved once at construction; the result is immutable and safe for
// concurrent use.
type Authorizer struct {
	permissions map[string][]string
}

// NewAuthorizer loads roles from source and resolves inheritance.
// It fails with ErrCircularInheritance on cycles or chains deeper than
// MaxInheritanceDepth, and with ErrInvalidRole when a role inherits from an
// undefined one.
func NewAuthorizer(ctx context.Context, source RoleSource) (*Authorizer, error) {
	roles, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInheritance(roles); err != nil {
		return nil, err
	}

	perms := make(map[string][]string, len(roles))
	for name := range roles {
		perms[name] = normalize(collect(name, roles, 0))
	}
	return &Authorizer{permissions: perms}, nil
}

// Can checks whether role grants permission, directly or inherited.
func (a *Authorizer) Can(role, permission string) error {
	granted, ok := a.permissions[role]
	if !ok {
		return ErrInvalidRole
	}
	if !hasPermission(granted, permission) {
		return ErrInsufficientPermissions
	}
	return nil
}

// CanAny checks whether any of roles grants permission. Unknown roles are
// ignored; a caller with no known role gets ErrInsufficientPermissions.
func (a *Authorizer) CanAny(roles []string, permission string) error {
	for _, role := range roles {
		if a.Can(role, permission) == nil {
			return nil
		}
	}
	return ErrInsufficientPermissions
}

// CanFromContext checks the roles stored by WithRoles.
func (a *Authorizer) CanFromContext(ctx context.Context, permission string) error {
	roles, ok := RolesFromContext(ctx)
	if !ok || len(roles) == 0 {
		return errors.Join(ErrRoleNotInContext, ErrInsufficientPermissions)
	}
	return a.CanAny(roles, permission)
}

// Permissions returns the resolved permissions of role.
func (a *Authorizer) Permissions(role string) ([]string, bool) {
	p, ok := a.permissions[role]
	return slices.Clone(p), ok
}

// Roles returns the known role names, sorted.
func (a *Authorizer) Roles() []string {
	return slices.Sorted(maps.Keys(a.permissions))
}

func collect(name string, roles map[string]Role, depth int) []string {
	if depth > MaxInheritanceDepth {
		return nil
	}
	role := roles[name]
	out := slices.Clone(role.Permissions)
	for _, parent := range role.Inherits {
		out = append(out, collect(parent, roles, depth+1)...)
	}
	return out
}

func validateInheritance(roles map[string]Role) error {
	for name := range roles {
		if err := walk(name, roles, []string{name}); err != nil {
			return err
		}
	}
	return nil
}

func walk(name string, roles map[string]Role, path []string) error {
	if len(path) > MaxInheritanceDepth+1 {
		return errors.Join(ErrCircularInheritance,
			fmt.Errorf("inheritance depth exceeds maximum allowed depth of %d", MaxInheritanceDepth))
	}
	for _, parent := range roles[name].Inherits {
		if _, ok := roles[parent]; !ok {
			return errors.Join(ErrInvalidRole, fmt.Errorf("role %q inherits undefined role %q", name, parent))
		}
		if slices.Contains(path, parent) {
			return errors.Join(ErrCircularInheritance,
				fmt.Errorf("circular inheritance detected: %s -> %s", name, parent))
		}
		if err := walk(parent, roles, append(slices.Clone(path), parent)); err != nil {
			return err
		}
	}
	return nil
}
