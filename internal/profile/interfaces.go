package profile

import (
	"context"
	"io"
	"time"
)

// Store persists pending markers and completed contexts. MarkPending and
// SaveCompleted are atomic insert-if-absent operations and return
// ErrDuplicateKey when the record already exists.
type Store interface {
	HasCompleted(ctx context.Context, key JobKey) (bool, error)
	GetCompleted(ctx context.Context, key JobKey) (CompletedContext, error)
	HasPending(ctx context.Context, key JobKey) (bool, error)
	MarkPending(ctx context.Context, marker PendingMarker) error
	SaveCompleted(ctx context.Context, completed CompletedContext) error
	ListOrphanedPending(ctx context.Context) ([]JobKey, error)
	DeletePending(ctx context.Context, key JobKey) error
	Ping(ctx context.Context) error
	Close() error
}

// Fetcher builds the opaque profile payload for one key.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (string, error)
}

// Starrer stars the project repository on behalf of the token owner.
type Starrer interface {
	Star(ctx context.Context, token string) error
}

// Queue hands tasks from the dispatcher to workers.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
}

// BlobStore archives payloads and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes payload digests for archive paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces event IDs.
type IDGenerator interface {
	NewID() (string, error)
}
