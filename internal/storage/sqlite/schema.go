package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the profile tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS requested_users (
			username TEXT NOT NULL,
			year INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (username, year)
		);`,
		`CREATE TABLE IF NOT EXISTS user_contexts (
			username TEXT NOT NULL,
			year INTEGER NOT NULL,
			context TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (username, year)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
