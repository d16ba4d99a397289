package migrations

import "embed"

// MigrationsFS holds the goose SQL migrations applied at startup and by ordersctl.
//
//go:embed *.sql
var MigrationsFS embed.FS
