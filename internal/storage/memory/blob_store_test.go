package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "profiles/2024/octocat/abc.json", "application/json",
		strings.NewReader(`{"login":"octocat"}`))
	require.NoError(t, err)
	require.Equal(t, "memory://profiles/2024/octocat/abc.json", uri)

	body, ok := store.Object("profiles/2024/octocat/abc.json")
	require.True(t, ok)
	require.JSONEq(t, `{"login":"octocat"}`, string(body))

	body[0] = 'X'
	again, _ := store.Object("profiles/2024/octocat/abc.json")
	require.Equal(t, byte('{'), again[0])

	_, ok = store.Object("missing")
	require.False(t, ok)
}
