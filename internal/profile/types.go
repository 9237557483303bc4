package profile

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinYear is the first year GitHub recorded contributions.
	MinYear = 2008
	// MaxUsernameLength matches the width of the username column.
	MaxUsernameLength = 80
)

// JobKey identifies one unit of profile work.
type JobKey struct {
	Username string `json:"username"`
	Year     int    `json:"year"`
}

// NewJobKey validates the inputs against the current time and builds a key.
// The upper year bound is the calendar year of now in UTC.
func NewJobKey(username string, year int, now time.Time) (JobKey, error) {
	key := JobKey{Username: strings.TrimSpace(username), Year: year}
	if err := key.Validate(now); err != nil {
		return JobKey{}, err
	}
	return key, nil
}

// Validate reports ErrInvalidKey when the username is empty or too long, or
// the year falls outside [MinYear, current year].
func (k JobKey) Validate(now time.Time) error {
	if k.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidKey)
	}
	if len(k.Username) > MaxUsernameLength {
		return fmt.Errorf("%w: username longer than %d bytes", ErrInvalidKey, MaxUsernameLength)
	}
	current := now.UTC().Year()
	if k.Year < MinYear || k.Year > current {
		return fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidKey, k.Year, MinYear, current)
	}
	return nil
}

// String renders the key for logs and cache keys.
func (k JobKey) String() string {
	return fmt.Sprintf("%s:%d", k.Username, k.Year)
}

// PendingMarker records that work for a key has been accepted and not yet
// completed.
type PendingMarker struct {
	Key       JobKey    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// CompletedContext is the immutable result of a successful fetch.
type CompletedContext struct {
	Key       JobKey    `json:"key"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// State is the externally observable lifecycle position of a key.
type State string

const (
	// StateUnknown means no marker and no context exist.
	StateUnknown State = "unknown"
	// StateWait means a marker exists and no context exists yet.
	StateWait State = "wait"
	// StateDone means a context exists.
	StateDone State = "done"
	// StateInvalid is returned when the key or request failed validation.
	StateInvalid State = "invalid"
)

// FetchRequest carries everything the upstream fetcher needs for one key.
type FetchRequest struct {
	Username string
	Token    string
	Year     int
	Timezone string
}

// Task is the immutable unit handed from the dispatcher to a worker.
type Task struct {
	Key         JobKey
	Token       string
	Timezone    string
	SubmittedAt time.Time
}

// FetchRequest converts the task into the fetcher's input.
func (t Task) FetchRequest() FetchRequest {
	return FetchRequest{
		Username: t.Key.Username,
		Token:    t.Token,
		Year:     t.Key.Year,
		Timezone: t.Timezone,
	}
}

// CompletionEvent is published after a context is saved.
type CompletionEvent struct {
	EventID     string    `json:"event_id"`
	Username    string    `json:"username"`
	Year        int       `json:"year"`
	Hash        string    `json:"hash"`
	ArchiveURI  string    `json:"archive_uri,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
