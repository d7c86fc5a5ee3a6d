// Package migrations carries the schema patches applied by datastore/pool.Migrate.
package migrations

import "embed"

// Dir is the directory inside FS holding the current patch set.
const Dir = "0001"

//go:embed 0001/*.sql
var FS embed.FS
