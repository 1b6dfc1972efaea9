package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hubenschmidt/go-orchestra/server/store/migrations"
)

// NewPostgresStore creates a PostgreSQL-backed conversation store
func NewPostgresStore(dsn string) (ConversationStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migrate(db, goose.DialectPostgres, migrations.Postgres()); err != nil {
		db.Close()
		return nil, err
	}

	return &sqlStore{db: db, numbered: true, now: time.Now}, nil
}
