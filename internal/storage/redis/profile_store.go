// Package redis implements profile.Store on Redis hashes. HSETNX provides
// the atomic insert-if-absent for markers and contexts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

// Config describes how to reach Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Option configures the Store.
type Option func(*ProfileStore)

// WithPrefix namespaces every hash the store touches.
func WithPrefix(prefix string) Option {
	return func(s *ProfileStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *ProfileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// ProfileStore keeps markers in {prefix}:pending and contexts in {prefix}:completed.
type ProfileStore struct {
	client redis.Cmdable
	closer func() error
	prefix string
	logger *zap.Logger
}

type storedContext struct {
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// New wraps an existing client. The caller owns the client lifecycle.
func New(client redis.Cmdable, opts ...Option) *ProfileStore {
	s := &ProfileStore{client: client, prefix: defaultPrefix, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open dials Redis, verifies the connection, and returns a store that owns the client.
func Open(ctx context.Context, cfg Config, opts ...Option) (*ProfileStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("store.redis_addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s := New(client, append([]Option{WithPrefix(cfg.Prefix)}, opts...)...)
	s.closer = client.Close
	return s, nil
}

// HasCompleted reports whether a context field exists.
func (s *ProfileStore) HasCompleted(ctx context.Context, key profile.JobKey) (bool, error) {
	ok, err := s.client.HExists(ctx, completedHash(s.prefix), field(key)).Result()
	if err != nil {
		return false, fmt.Errorf("hexists completed %s: %w", key, err)
	}
	return ok, nil
}

// GetCompleted decodes a context field or returns profile.ErrNotFound.
func (s *ProfileStore) GetCompleted(ctx context.Context, key profile.JobKey) (profile.CompletedContext, error) {
	raw, err := s.client.HGet(ctx, completedHash(s.prefix), field(key)).Result()
	if errors.Is(err, redis.Nil) {
		return profile.CompletedContext{}, fmt.Errorf("completed context %s: %w", key, profile.ErrNotFound)
	}
	if err != nil {
		return profile.CompletedContext{}, fmt.Errorf("hget completed %s: %w", key, err)
	}
	var stored storedContext
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return profile.CompletedContext{}, fmt.Errorf("decode completed %s: %w", key, err)
	}
	return profile.CompletedContext{Key: key, Payload: stored.Payload, CreatedAt: stored.CreatedAt}, nil
}

// HasPending reports whether a marker field exists.
func (s *ProfileStore) HasPending(ctx context.Context, key profile.JobKey) (bool, error) {
	ok, err := s.client.HExists(ctx, pendingHash(s.prefix), field(key)).Result()
	if err != nil {
		return false, fmt.Errorf("hexists pending %s: %w", key, err)
	}
	return ok, nil
}

// MarkPending sets the marker field only if it is absent.
func (s *ProfileStore) MarkPending(ctx context.Context, marker profile.PendingMarker) error {
	set, err := s.client.HSetNX(ctx, pendingHash(s.prefix), field(marker.Key),
		marker.CreatedAt.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return fmt.Errorf("hsetnx pending %s: %w", marker.Key, err)
	}
	if !set {
		return fmt.Errorf("pending marker %s: %w", marker.Key, profile.ErrDuplicateKey)
	}
	return nil
}

// SaveCompleted sets the context field only if it is absent.
func (s *ProfileStore) SaveCompleted(ctx context.Context, completed profile.CompletedContext) error {
	body, err := json.Marshal(storedContext{Payload: completed.Payload, CreatedAt: completed.CreatedAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode completed %s: %w", completed.Key, err)
	}
	set, err := s.client.HSetNX(ctx, completedHash(s.prefix), field(completed.Key), body).Result()
	if err != nil {
		return fmt.Errorf("hsetnx completed %s: %w", completed.Key, err)
	}
	if !set {
		return fmt.Errorf("completed context %s: %w", completed.Key, profile.ErrDuplicateKey)
	}
	return nil
}

// ListOrphanedPending returns marker fields with no context field.
func (s *ProfileStore) ListOrphanedPending(ctx context.Context) ([]profile.JobKey, error) {
	fields, err := s.client.HKeys(ctx, pendingHash(s.prefix)).Result()
	if err != nil {
		return nil, fmt.Errorf("hkeys pending: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, completedHash(s.prefix), fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget completed: %w", err)
	}
	var keys []profile.JobKey
	for i, f := range fields {
		if values[i] != nil {
			continue
		}
		key, err := parseField(f)
		if err != nil {
			s.logger.Warn("skipping malformed pending field", zap.String("field", f), zap.Error(err))
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Username != keys[j].Username {
			return keys[i].Username < keys[j].Username
		}
		return keys[i].Year < keys[j].Year
	})
	return keys, nil
}

// DeletePending removes the marker field if present.
func (s *ProfileStore) DeletePending(ctx context.Context, key profile.JobKey) error {
	if err := s.client.HDel(ctx, pendingHash(s.prefix), field(key)).Err(); err != nil {
		return fmt.Errorf("hdel pending %s: %w", key, err)
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (s *ProfileStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close closes the client when the store opened it.
func (s *ProfileStore) Close() error {
	if s.closer == nil {
		return nil
	}
	if err := s.closer(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
