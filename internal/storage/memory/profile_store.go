// Package memory provides in-memory profile and blob stores for development
// and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

// ProfileStore keeps markers and contexts in maps guarded by one mutex, so
// each check-and-insert is atomic within the process.
type ProfileStore struct {
	mu        sync.RWMutex
	pending   map[profile.JobKey]profile.PendingMarker
	completed map[profile.JobKey]profile.CompletedContext
}

// NewProfileStore constructs an empty ProfileStore.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		pending:   make(map[profile.JobKey]profile.PendingMarker),
		completed: make(map[profile.JobKey]profile.CompletedContext),
	}
}

// HasCompleted reports whether a context exists for key.
func (s *ProfileStore) HasCompleted(_ context.Context, key profile.JobKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completed[key]
	return ok, nil
}

// GetCompleted returns the stored context or profile.ErrNotFound.
func (s *ProfileStore) GetCompleted(_ context.Context, key profile.JobKey) (profile.CompletedContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	completed, ok := s.completed[key]
	if !ok {
		return profile.CompletedContext{}, fmt.Errorf("completed context %s: %w", key, profile.ErrNotFound)
	}
	return completed, nil
}

// HasPending reports whether a marker exists for key.
func (s *ProfileStore) HasPending(_ context.Context, key profile.JobKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[key]
	return ok, nil
}

// MarkPending inserts the marker unless one already exists.
func (s *ProfileStore) MarkPending(_ context.Context, marker profile.PendingMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pending[marker.Key]; exists {
		return fmt.Errorf("pending marker %s: %w", marker.Key, profile.ErrDuplicateKey)
	}
	s.pending[marker.Key] = marker
	return nil
}

// SaveCompleted inserts the context unless one already exists.
func (s *ProfileStore) SaveCompleted(_ context.Context, completed profile.CompletedContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.completed[completed.Key]; exists {
		return fmt.Errorf("completed context %s: %w", completed.Key, profile.ErrDuplicateKey)
	}
	s.completed[completed.Key] = completed
	return nil
}

// ListOrphanedPending returns markers without a context, ordered by username then year.
func (s *ProfileStore) ListOrphanedPending(_ context.Context) ([]profile.JobKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []profile.JobKey
	for key := range s.pending {
		if _, done := s.completed[key]; !done {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Username != keys[j].Username {
			return keys[i].Username < keys[j].Username
		}
		return keys[i].Year < keys[j].Year
	})
	return keys, nil
}

// DeletePending removes the marker; missing markers are ignored.
func (s *ProfileStore) DeletePending(_ context.Context, key profile.JobKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	return nil
}

// Ping always succeeds.
func (s *ProfileStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *ProfileStore) Close() error {
	return nil
}
