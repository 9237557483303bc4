// Package storetest holds behavioral checks every profile.Store backend must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) profile.Store

// Run executes the shared store checks against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("MarkPendingThenRead", func(t *testing.T) { testMarkPendingThenRead(t, newStore(t)) })
	t.Run("MarkPendingRejectsDuplicate", func(t *testing.T) { testMarkPendingRejectsDuplicate(t, newStore(t)) })
	t.Run("MarkPendingConcurrentSingleWinner", func(t *testing.T) { testMarkPendingConcurrent(t, newStore(t)) })
	t.Run("SaveCompletedWriteOnce", func(t *testing.T) { testSaveCompletedWriteOnce(t, newStore(t)) })
	t.Run("GetCompletedMissing", func(t *testing.T) { testGetCompletedMissing(t, newStore(t)) })
	t.Run("ListOrphanedPending", func(t *testing.T) { testListOrphanedPending(t, newStore(t)) })
	t.Run("DeletePendingIdempotent", func(t *testing.T) { testDeletePendingIdempotent(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

var created = time.Date(2024, time.June, 1, 10, 30, 0, 0, time.UTC)

func testMarkPendingThenRead(t *testing.T, store profile.Store) {
	ctx := context.Background()
	key := profile.JobKey{Username: "octocat", Year: 2023}

	pending, err := store.HasPending(ctx, key)
	require.NoError(t, err)
	require.False(t, pending)

	require.NoError(t, store.MarkPending(ctx, profile.PendingMarker{Key: key, CreatedAt: created}))

	pending, err = store.HasPending(ctx, key)
	require.NoError(t, err)
	require.True(t, pending)

	done, err := store.HasCompleted(ctx, key)
	require.NoError(t, err)
	require.False(t, done)

	other, err := store.HasPending(ctx, profile.JobKey{Username: "octocat", Year: 2022})
	require.NoError(t, err)
	require.False(t, other)
}

func testMarkPendingRejectsDuplicate(t *testing.T, store profile.Store) {
	ctx := context.Background()
	marker := profile.PendingMarker{Key: profile.JobKey{Username: "octocat", Year: 2023}, CreatedAt: created}

	require.NoError(t, store.MarkPending(ctx, marker))
	err := store.MarkPending(ctx, marker)
	require.ErrorIs(t, err, profile.ErrDuplicateKey)
}

func testMarkPendingConcurrent(t *testing.T, store profile.Store) {
	ctx := context.Background()
	marker := profile.PendingMarker{Key: profile.JobKey{Username: "racer", Year: 2020}, CreatedAt: created}

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
		others  []error
	)
	start := make(chan struct{})
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := store.MarkPending(ctx, marker)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, profile.ErrDuplicateKey):
				losers++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	require.Equal(t, 1, winners)
	require.Equal(t, callers-1, losers)
}

func testSaveCompletedWriteOnce(t *testing.T, store profile.Store) {
	ctx := context.Background()
	key := profile.JobKey{Username: "octocat", Year: 2021}
	first := profile.CompletedContext{Key: key, Payload: `{"total":1}`, CreatedAt: created}

	require.NoError(t, store.SaveCompleted(ctx, first))
	err := store.SaveCompleted(ctx, profile.CompletedContext{Key: key, Payload: `{"total":2}`, CreatedAt: created})
	require.ErrorIs(t, err, profile.ErrDuplicateKey)

	done, err := store.HasCompleted(ctx, key)
	require.NoError(t, err)
	require.True(t, done)

	got, err := store.GetCompleted(ctx, key)
	require.NoError(t, err)
	require.Equal(t, key, got.Key)
	require.Equal(t, first.Payload, got.Payload)
	require.True(t, first.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, first.CreatedAt)
}

func testGetCompletedMissing(t *testing.T, store profile.Store) {
	_, err := store.GetCompleted(context.Background(), profile.JobKey{Username: "ghost", Year: 2019})
	require.ErrorIs(t, err, profile.ErrNotFound)
}

func testListOrphanedPending(t *testing.T, store profile.Store) {
	ctx := context.Background()
	orphanA := profile.JobKey{Username: "alice", Year: 2022}
	orphanB := profile.JobKey{Username: "alice", Year: 2023}
	finished := profile.JobKey{Username: "bob", Year: 2022}
	onlyCompleted := profile.JobKey{Username: "carol", Year: 2022}

	for _, key := range []profile.JobKey{orphanB, finished, orphanA} {
		require.NoError(t, store.MarkPending(ctx, profile.PendingMarker{Key: key, CreatedAt: created}))
	}
	require.NoError(t, store.SaveCompleted(ctx, profile.CompletedContext{Key: finished, Payload: "{}", CreatedAt: created}))
	require.NoError(t, store.SaveCompleted(ctx, profile.CompletedContext{Key: onlyCompleted, Payload: "{}", CreatedAt: created}))

	orphans, err := store.ListOrphanedPending(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []profile.JobKey{orphanA, orphanB}, orphans)
}

func testDeletePendingIdempotent(t *testing.T, store profile.Store) {
	ctx := context.Background()
	key := profile.JobKey{Username: "octocat", Year: 2020}

	require.NoError(t, store.MarkPending(ctx, profile.PendingMarker{Key: key, CreatedAt: created}))
	require.NoError(t, store.DeletePending(ctx, key))
	require.NoError(t, store.DeletePending(ctx, key))

	pending, err := store.HasPending(ctx, key)
	require.NoError(t, err)
	require.False(t, pending)

	// The key is free again after release.
	require.NoError(t, store.MarkPending(ctx, profile.PendingMarker{Key: key, CreatedAt: created}))
}
