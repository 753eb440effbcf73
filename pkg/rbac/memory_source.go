package rbac

import (
	"context"
	"maps"
	"slices"
)

// RoleSource provides role definitions to NewAuthorizer.
type RoleSource interface {
	Load(ctx context.Context) (map[string]Role, error)
}

type memorySource struct {
	roles map[string]Role
}

// NewMemorySource returns a RoleSource over a deep copy of roles.
func NewMemorySource(roles map[string]Role) RoleSource {
	cp := make(map[string]Role, len(roles))
	for name, r := range roles {
		cp[name] = Role{
			Permissions: slices.Clone(r.Permissions),
			Inherits:    slices.Clone(r.Inherits),
		}
	}
	return &memorySource{roles: cp}
}

func (s *memorySource) Load(context.Context) (map[string]Role, error) {
	return maps.Clone(s.roles), nil
}
