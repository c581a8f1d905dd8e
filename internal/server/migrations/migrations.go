// Package migrations embeds the goose SQL migrations for the portal schemas.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
