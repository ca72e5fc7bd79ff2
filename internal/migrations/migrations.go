// Package migrations embeds the SQL schema migrations applied at startup.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS

// Dir is the directory passed to the migration source. Embedded paths are
// relative to the package root.
const Dir = "."
