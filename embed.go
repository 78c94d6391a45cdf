// Package funnelboard carries assets shipped inside the binaries.
package funnelboard

import "embed"

// Migrations is the embedded goose migration set applied on startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS
