package audit

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the goose migrations creating the audit_logs table,
// rooted so they can be passed straight to pg.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic("audit: embedded migrations missing: " + err.Error())
	}
	return sub
}
