package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan profile.Task, 1)
	errCh := make(chan error, 1)

	go func() {
		task, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- task
	}()

	want := profile.Task{Key: profile.JobKey{Username: "octocat", Year: 2024}, Timezone: "UTC"}
	require.NoError(t, q.Enqueue(context.Background(), want))

	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return task")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewQueue(1).Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	full := NewQueue(1)
	require.NoError(t, full.Enqueue(context.Background(), profile.Task{}))
	require.Equal(t, 1, full.Len())
	err = full.Enqueue(ctx, profile.Task{})
	require.EqualError(t, err, "enqueue canceled: context canceled")
	require.True(t, errors.Is(err, context.Canceled))
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	buffered := profile.Task{Key: profile.JobKey{Username: "octocat", Year: 2020}}
	require.NoError(t, q.Enqueue(context.Background(), buffered))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Enqueue(context.Background(), profile.Task{}), ErrClosed)

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, buffered, got)

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}
