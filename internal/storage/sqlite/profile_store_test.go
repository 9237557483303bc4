package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/my-github-review/internal/profile"
	"github.com/JakeFAU/my-github-review/internal/storage/storetest"
)

func openTemp(t *testing.T) *ProfileStore {
	t.Helper()
	store, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "db", "profiles.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProfileStoreBehavior(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) profile.Store { return openTemp(t) })
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Path: "  "})
	require.Error(t, err)
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profiles.db")
	key := profile.JobKey{Username: "octocat", Year: 2022}

	first, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.MarkPending(ctx, profile.PendingMarker{Key: key, CreatedAt: time.Now()}))
	require.NoError(t, first.Close())

	second, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	orphans, err := second.ListOrphanedPending(ctx)
	require.NoError(t, err)
	require.Equal(t, []profile.JobKey{key}, orphans)
}
