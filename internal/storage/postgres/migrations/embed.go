package migrations

import "embed"

// FS embeds all PostgreSQL migration files.
//
//go:embed *.sql
var FS embed.FS
