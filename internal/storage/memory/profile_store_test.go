package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/my-github-review/internal/profile"
	"github.com/JakeFAU/my-github-review/internal/storage/storetest"
)

func TestProfileStoreBehavior(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(*testing.T) profile.Store { return NewProfileStore() })
}

func TestListOrphanedPendingSorted(t *testing.T) {
	t.Parallel()

	store := NewProfileStore()
	ctx := context.Background()
	for _, key := range []profile.JobKey{
		{Username: "zed", Year: 2020},
		{Username: "amy", Year: 2021},
		{Username: "amy", Year: 2019},
	} {
		require.NoError(t, store.MarkPending(ctx, profile.PendingMarker{Key: key}))
	}

	keys, err := store.ListOrphanedPending(ctx)
	require.NoError(t, err)
	require.Equal(t, []profile.JobKey{
		{Username: "amy", Year: 2019},
		{Username: "amy", Year: 2021},
		{Username: "zed", Year: 2020},
	}, keys)
}
