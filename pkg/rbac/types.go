package rbac

// MaxInheritanceDepth bounds role inheritance chains.
const MaxInheritanceDepth = 10

// Permissions checked by the control plane's admin surface.
const (
	PermFlagsRead      = "feature_flags.read"
	PermFlagsWrite     = "feature_flags.write"
	PermBreakerRead    = "circuit_breaker.read"
	PermBreakerReset   = "circuit_breaker.reset"
	PermAuditRead      = "audit.read"
	PermRateLimitReset = "rate_limit.reset"
	PermissionWildcard = "*"
)

// Role is a set of permissions with optional inheritance. Permissions are
// dot-separated ("feature_flags.write"); a trailing "*" matches a whole
// namespace and a bare "*" matches everything.
type Role struct {
	Permissions []string `yaml:"permissions"`
	Inherits    []string `yaml:"inherits"`
}

// Can reports whether the role grants permission directly, ignoring
// inheritance.
func (r *Role) Can(permission string) bool {
	return hasPermission(r.Permissions, permission)
}

// DefaultRoles is the role set used when no other source is configured.
// "admin" may do anything; "operator" manages flags, the breaker and rate
// limit keys; "auditor" reads the audit trail and the flag registry.
func DefaultRoles() map[string]Role {
	return map[string]Role{
		"viewer": {
			Permissions: []string{PermFlagsRead, PermBreakerRead},
		},
		"operator": {
			Permissions: []string{"feature_flags.*", "circuit_breaker.*", "rate_limit.*"},
			Inherits:    []string{"viewer"},
		},
		"auditor": {
			Permissions: []string{PermAuditRead},
			Inherits:    []string{"viewer"},
		},
		"admin": {
			Permissions: []string{PermissionWildcard},
		},
	}
}
