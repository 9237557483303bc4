package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

func TestNewMessageCompletionEvent(t *testing.T) {
	t.Parallel()

	event := profile.CompletionEvent{
		EventID:     "evt-1",
		Username:    "octocat",
		Year:        2023,
		Hash:        "abc",
		CompletedAt: time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC),
	}
	msg, err := newMessage(event)
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"event_type": "profile.completed",
		"username":   "octocat",
		"year":       "2023",
	}, msg.Attributes)

	var decoded profile.CompletionEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	require.Equal(t, event, decoded)
}

func TestNewMessageOtherPayload(t *testing.T) {
	t.Parallel()

	msg, err := newMessage(map[string]string{"k": "v"})
	require.NoError(t, err)
	require.Nil(t, msg.Attributes)
	require.JSONEq(t, `{"k":"v"}`, string(msg.Data))

	_, err = newMessage(func() {})
	require.Error(t, err)
}

func TestPublishWithoutPublisher(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "topic", "x")
	require.Error(t, err)
}
