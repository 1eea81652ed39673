// Package migrations embeds the database schema migrations
package migrations

import "embed"

// FS holds the numbered up/down SQL files
//
//go:embed *.sql
var FS embed.FS
