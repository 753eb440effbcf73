package rbac

import (
	"context"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRoleFile is returned when a role file cannot be decoded.
var ErrInvalidRoleFile = errors.New("rbac.invalid_role_file")

// Config selects the role source.
type Config struct {
	RolesFile string `env:"RBAC_ROLES_FILE"` // Optional YAML role file; DefaultRoles when empty.
}

// Source returns the RoleSource described by cfg.
func (c Config) Source() RoleSource {
	if c.RolesFile == "" {
		return NewMemorySource(DefaultRoles())
	}
	return FileSource(c.RolesFile)
}

type fileSource struct {
	path string
}

// FileSource reads roles from a YAML file on every Load:
//
//	roles:
//	  operator:
//	    permissions: ["feature_flags.*"]
//	    inherits: [viewer]
//	  viewer:
//	    permissions: [feature_flags.read]
func FileSource(path string) RoleSource {
	return fileSource{path: path}
}

func (s fileSource) Load(context.Context) (map[string]Role, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Join(ErrInvalidRoleFile, err)
	}
	defer f.Close()
	return DecodeRoles(f)
}

// DecodeRoles reads the YAML role document from r.
func DecodeRoles(r io.Reader) (map[string]Role, error) {
	var doc struct {
		Roles map[string]Role `yaml:"roles"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidRoleFile, err)
	}
	for name := range doc.Roles {
		if name == "" {
			return nil, errors.Join(ErrInvalidRoleFile, errors.New("empty role name"))
		}
	}
	if doc.Roles == nil {
		doc.Roles = map[string]Role{}
	}
	return doc.Roles, nil
}
