// Package migrations embeds the SQL schema migrations of the sitemap service.
package migrations

import "embed"

// FS holds one migration directory per database driver.
//
//go:embed postgres/*.sql sqlite3/*.sql
var FS embed.FS
