// Package pg bootstraps the optional Postgres connection used for audit
// persistence. It wraps pgx/v5 pooling with retry, applies goose migrations
// from an fs.FS (usually an embedded directory owned by the package that
// needs the schema) and exposes a health check closure.
//
// Usage:
//
//	cfg := config.MustLoad[pg.Config]()
//	if cfg.Enabled() {
//		pool, err := pg.Connect(ctx, cfg)
//		if err != nil {
//			return err
//		}
//		defer pool.Close()
//
//		if err := pg.Migrate(ctx, pool, audit.Migrations(), cfg, log); err != nil {
//			return err
//		}
//	}
//
// Configuration is read from PG_* environment variables; see the Config
// field tags for names and defaults.
package pg
