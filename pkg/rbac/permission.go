package rbac

import (
	"slices"
	"strings"
)

// permissionMatches reports whether pattern grants permission.
func permissionMatches(permission, pattern string) bool {
	if permission == pattern || pattern == PermissionWildcard {
		return true
	}

	if prefix, ok := strings.CutSuffix(pattern, PermissionWildcard); ok {
		prefix = strings.TrimSuffix(prefix, ".")
		return strings.HasPrefix(permission, prefix+".")
	}

	return false
}

func hasPermission(granted []string, permission string) bool {
	for _, p := range granted {
		if permissionMatches(permission, p) {
			return true
		}
	}
	return false
}

// normalize removes duplicates and sorts.
func normalize(perms []string) []string {
	if len(perms) == 0 {
		return nil
	}
	out := slices.Clone(perms)
	slices.Sort(out)
	return slices.Compact(out)
}
