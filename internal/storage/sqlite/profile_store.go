// Package sqlite implements profile.Store on a local SQLite file using the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/my-github-review/internal/profile"
)

// Config controls where the database lives.
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// ProfileStore persists markers in requested_users and contexts in user_contexts.
type ProfileStore struct {
	db *sql.DB
}

// Open creates parent directories, opens the database, applies pragmas, and migrates the schema.
func Open(ctx context.Context, cfg Config) (*ProfileStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", busy.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ProfileStore{db: db}, nil
}

// HasCompleted reports whether a context row exists.
func (s *ProfileStore) HasCompleted(ctx context.Context, key profile.JobKey) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM user_contexts WHERE username = ? AND year = ?`, key)
}

// GetCompleted loads the context row or returns profile.ErrNotFound.
func (s *ProfileStore) GetCompleted(ctx context.Context, key profile.JobKey) (profile.CompletedContext, error) {
	var (
		payload   string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT context, created_at FROM user_contexts WHERE username = ? AND year = ?`,
		key.Username, key.Year,
	).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.CompletedContext{}, fmt.Errorf("completed context %s: %w", key, profile.ErrNotFound)
	}
	if err != nil {
		return profile.CompletedContext{}, fmt.Errorf("select context: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return profile.CompletedContext{}, fmt.Errorf("parse created_at: %w", err)
	}
	return profile.CompletedContext{Key: key, Payload: payload, CreatedAt: ts}, nil
}

// HasPending reports whether a marker row exists.
func (s *ProfileStore) HasPending(ctx context.Context, key profile.JobKey) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM requested_users WHERE username = ? AND year = ?`, key)
}

// MarkPending inserts a marker row; a primary key conflict yields profile.ErrDuplicateKey.
func (s *ProfileStore) MarkPending(ctx context.Context, marker profile.PendingMarker) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO requested_users (username, year, created_at) VALUES (?, ?, ?)
			ON CONFLICT(username, year) DO NOTHING`,
		marker.Key.Username, marker.Key.Year, formatTime(marker.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert requested user: %w", err)
	}
	return duplicateIfUnchanged(res, "pending marker", marker.Key)
}

// SaveCompleted inserts a context row; a primary key conflict yields profile.ErrDuplicateKey.
func (s *ProfileStore) SaveCompleted(ctx context.Context, completed profile.CompletedContext) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_contexts (username, year, context, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(username, year) DO NOTHING`,
		completed.Key.Username, completed.Key.Year, completed.Payload, formatTime(completed.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user context: %w", err)
	}
	return duplicateIfUnchanged(res, "completed context", completed.Key)
}

// ListOrphanedPending returns markers with no matching context.
func (s *ProfileStore) ListOrphanedPending(ctx context.Context) ([]profile.JobKey, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT r.username, r.year
FROM requested_users r
LEFT OUTER JOIN user_contexts c ON r.username = c.username AND r.year = c.year
WHERE c.username IS NULL
ORDER BY r.username, r.year`)
	if err != nil {
		return nil, fmt.Errorf("query orphaned markers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []profile.JobKey
	for rows.Next() {
		var key profile.JobKey
		if err := rows.Scan(&key.Username, &key.Year); err != nil {
			return nil, fmt.Errorf("scan orphaned marker: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orphaned markers: %w", err)
	}
	return keys, nil
}

// DeletePending removes the marker row if present.
func (s *ProfileStore) DeletePending(ctx context.Context, key profile.JobKey) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM requested_users WHERE username = ? AND year = ?`,
		key.Username, key.Year,
	); err != nil {
		return fmt.Errorf("delete requested user: %w", err)
	}
	return nil
}

// Ping checks the database handle.
func (s *ProfileStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *ProfileStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func (s *ProfileStore) exists(ctx context.Context, query string, key profile.JobKey) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, key.Username, key.Year).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", key, err)
	}
	return true, nil
}

func duplicateIfUnchanged(res sql.Result, what string, key profile.JobKey) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, key, profile.ErrDuplicateKey)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
