// Package migrations embeds the timeline schema into the binary.
//
// Apply with:
//
//	db.Migrator(migrations.FS, migrations.Dir).Up(ctx)
package migrations

import "embed"

// FS holds every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS that holds the migrations.
const Dir = "."
