// Package migrations embeds the numbered schema files for each supported
// driver.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql
var postgresFiles embed.FS

//go:embed sqlite/*.sql
var sqliteFiles embed.FS

// Postgres returns the Postgres migrations rooted at their directory.
func Postgres() fs.FS { return sub(postgresFiles, "postgres") }

// SQLite returns the SQLite migrations rooted at their directory.
func SQLite() fs.FS { return sub(sqliteFiles, "sqlite") }

func sub(f embed.FS, dir string) fs.FS {
	s, err := fs.Sub(f, dir)
	if err != nil {
		panic(err)
	}
	return s
}
