// Package migrations embeds the baseline SQL migration files.
package migrations

import "embed"

// FS contains the embedded SQL migration files used to seed a fresh
// migrations directory.
//
//go:embed *.sql
var FS embed.FS
