// Package migrations embeds the catalogue schema.
package migrations

import "embed"

// FS holds the forward-only SQL migrations applied at startup.
//
//go:embed *.up.sql
var FS embed.FS
