package profile

import "errors"

var (
	// ErrInvalidKey indicates a username/year pair that can never be served.
	ErrInvalidKey = errors.New("invalid job key")
	// ErrInvalidRequest indicates a submit request missing a token or timezone.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDuplicateKey is returned by conditional inserts when the record already exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound is returned when a lookup finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable wraps backend failures surfaced to callers.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrQueueUnavailable means an accepted task could not be handed to a worker.
	ErrQueueUnavailable = errors.New("task queue unavailable")
	// ErrQueueClosed is returned by a queue after shutdown.
	ErrQueueClosed = errors.New("queue closed")
	// ErrFetchFailed wraps upstream failures inside a background task.
	ErrFetchFailed = errors.New("fetch failed")
)
