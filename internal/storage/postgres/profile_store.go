// Package postgres provides a Postgres-backed profile.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	AutoMigrate     bool
}

// pool is the subset of pgxpool.Pool the store needs, so pgxmock can stand in.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ProfileStore persists markers and contexts in requested_users and user_contexts.
type ProfileStore struct {
	pool pool
}

// NewProfileStore connects to Postgres and optionally applies migrations.
func NewProfileStore(ctx context.Context, cfg Config) (*ProfileStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pgPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if err := Migrate(ctx, pgPool); err != nil {
			pgPool.Close()
			return nil, err
		}
	}
	return &ProfileStore{pool: pgPool}, nil
}

// NewProfileStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProfileStoreWithPool(p pool) (*ProfileStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ProfileStore{pool: p}, nil
}

// HasCompleted reports whether a context row exists.
func (s *ProfileStore) HasCompleted(ctx context.Context, key profile.JobKey) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM user_contexts WHERE username = $1 AND year = $2)`, key)
}

// GetCompleted loads a context row or returns profile.ErrNotFound.
func (s *ProfileStore) GetCompleted(ctx context.Context, key profile.JobKey) (profile.CompletedContext, error) {
	out := profile.CompletedContext{Key: key}
	err := s.pool.QueryRow(ctx,
		`SELECT context, created_at FROM user_contexts WHERE username = $1 AND year = $2`,
		key.Username, key.Year,
	).Scan(&out.Payload, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.CompletedContext{}, fmt.Errorf("completed context %s: %w", key, profile.ErrNotFound)
	}
	if err != nil {
		return profile.CompletedContext{}, fmt.Errorf("select user context: %w", err)
	}
	return out, nil
}

// HasPending reports whether a marker row exists.
func (s *ProfileStore) HasPending(ctx context.Context, key profile.JobKey) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM requested_users WHERE username = $1 AND year = $2)`, key)
}

// MarkPending inserts a marker row; the primary key turns a second insert into profile.ErrDuplicateKey.
func (s *ProfileStore) MarkPending(ctx context.Context, marker profile.PendingMarker) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO requested_users (username, year, created_at) VALUES ($1, $2, $3)`,
		marker.Key.Username, marker.Key.Year, marker.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("pending marker %s: %w", marker.Key, profile.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("insert requested user: %w", err)
	}
	return nil
}

// SaveCompleted inserts a context row; a second insert yields profile.ErrDuplicateKey.
func (s *ProfileStore) SaveCompleted(ctx context.Context, completed profile.CompletedContext) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_contexts (username, year, context, created_at) VALUES ($1, $2, $3, $4)`,
		completed.Key.Username, completed.Key.Year, completed.Payload, completed.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("completed context %s: %w", completed.Key, profile.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("insert user context: %w", err)
	}
	return nil
}

// ListOrphanedPending returns markers with no matching context.
func (s *ProfileStore) ListOrphanedPending(ctx context.Context) ([]profile.JobKey, error) {
	rows, err := s.pool.Query(ctx, `
SELECT r.username, r.year
FROM requested_users r
LEFT OUTER JOIN user_contexts c ON r.username = c.username AND r.year = c.year
WHERE c.username IS NULL
ORDER BY r.username, r.year`)
	if err != nil {
		return nil, fmt.Errorf("query orphaned markers: %w", err)
	}
	defer rows.Close()

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
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM requested_users WHERE username = $1 AND year = $2`,
		key.Username, key.Year,
	); err != nil {
		return fmt.Errorf("delete requested user: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *ProfileStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ProfileStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *ProfileStore) exists(ctx context.Context, query string, key profile.JobKey) (bool, error) {
	var found bool
	if err := s.pool.QueryRow(ctx, query, key.Username, key.Year).Scan(&found); err != nil {
		return false, fmt.Errorf("lookup %s: %w", key, err)
	}
	return found, nil
}
