package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/hubenschmidt/go-orchestra/server/store/migrations"
)

const DefaultSQLitePath = "data/orchestra.db"

// NewSQLiteStore opens (creating if needed) a SQLite conversation store and
// migrates it to the latest schema.
func NewSQLiteStore(dsn string) (ConversationStore, error) {
	if dsn == "" {
		dsn = DefaultSQLitePath
	}

	dir := filepath.Dir(dsn)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time keeps appends serialized.
	db.SetMaxOpenConns(1)

	if err := migrate(db, goose.DialectSQLite3, migrations.SQLite()); err != nil {
		db.Close()
		return nil, err
	}

	return &sqlStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB, dialect goose.Dialect, fsys fs.FS) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
