// Package migrations embeds the schema for each supported database engine.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
