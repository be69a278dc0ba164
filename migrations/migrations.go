package migrations

import "embed"

// MigrationsFS contains all SQL migration files.
//
//go:embed *.sql
var MigrationsFS embed.FS
