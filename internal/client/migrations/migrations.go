// Package migrations embeds the local sqlite schema used by the CLI.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
