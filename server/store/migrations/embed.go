package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql
var sqlite embed.FS

//go:embed postgres/*.sql
var postgres embed.FS

// SQLite returns the goose migrations for SQLite, rooted at the sql files.
func SQLite() fs.FS {
	return mustSub(sqlite, "sqlite")
}

// Postgres returns the goose migrations for PostgreSQL.
func Postgres() fs.FS {
	return mustSub(postgres, "postgres")
}

func mustSub(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
