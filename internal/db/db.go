package db

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied", "count", len(migrations))

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS envelope_outbox (
            id SERIAL PRIMARY KEY,
            message_id TEXT NOT NULL UNIQUE,
            routing_key TEXT NOT NULL,
            label TEXT NOT NULL,
            content_type TEXT NOT NULL,
            headers JSONB NOT NULL DEFAULT '{}'::jsonb,
            payloads JSONB NOT NULL DEFAULT '[]'::jsonb,
            status TEXT NOT NULL DEFAULT 'pending',
            last_error TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            published_at TIMESTAMPTZ
        );`,
	`CREATE INDEX IF NOT EXISTS envelope_outbox_created_at_idx ON envelope_outbox (created_at DESC);`,
}

func runMigrations(db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
