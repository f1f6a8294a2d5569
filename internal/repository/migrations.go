package repository

import "embed"

// MigrationsFS carries the SQL migrations for the PostgreSQL store so the
// binary can apply them without external files.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
