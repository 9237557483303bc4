package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	event := profile.CompletionEvent{EventID: "e1", Username: "octocat", Year: 2023}
	id1, err := pub.Publish(context.Background(), "profiles-done", event)
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "profiles-done", msgs[0].Topic)
	require.Equal(t, event, msgs[0].Payload)

	msgs[0].Topic = "modified"
	require.Equal(t, "profiles-done", pub.Messages()[0].Topic)
}
