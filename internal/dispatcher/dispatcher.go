// Package dispatcher accepts profile submissions, deduplicates them through the
// store, and fans accepted tasks out to a pool of workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/metrics"
	"github.com/JakeFAU/my-github-review/internal/profile"
)

const defaultEnqueueTimeout = 5 * time.Second

// Submission outcomes reported to metrics.
const (
	outcomeInvalid     = "invalid"
	outcomeDone        = "done"
	outcomeWaiting     = "waiting"
	outcomeRaceLost    = "race_lost"
	outcomeAccepted    = "accepted"
	outcomeStoreError  = "store_error"
	outcomeQueueFailed = "queue_failed"
)

// Store is the subset of profile.Store used by the dispatcher.
type Store interface {
	HasCompleted(ctx context.Context, key profile.JobKey) (bool, error)
	GetCompleted(ctx context.Context, key profile.JobKey) (profile.CompletedContext, error)
	HasPending(ctx context.Context, key profile.JobKey) (bool, error)
	MarkPending(ctx context.Context, marker profile.PendingMarker) error
	DeletePending(ctx context.Context, key profile.JobKey) error
}

// Runner is anything that consumes the task queue until ctx ends.
type Runner interface {
	Run(ctx context.Context)
}

// Config tunes the dispatcher.
type Config struct {
	EnqueueTimeout time.Duration
}

// SubmitRequest is a request to build the profile for one username/year.
type SubmitRequest struct {
	Username string
	Year     int
	Token    string
	Timezone string
}

// Dispatcher decides, per submit, whether to report DONE, report WAIT, or
// start new work.
type Dispatcher struct {
	store   Store
	queue   profile.Queue
	workers []Runner
	clock   profile.Clock
	cfg     Config
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(store Store, queue profile.Queue, workers []Runner, clock profile.Clock, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = defaultEnqueueTimeout
	}
	return &Dispatcher{
		store:   store,
		queue:   queue,
		workers: workers,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run starts all workers and blocks until the context finishes and every
// worker has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(r Runner) {
			defer wg.Done()
			r.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit requests the profile for a username and year. It returns StateDone
// when the context already exists and StateWait when work is pending or was
// just started. At most one task is started per key.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (profile.State, error) {
	key, err := d.validate(req)
	if err != nil {
		metrics.ObserveSubmission(outcomeInvalid)
		return profile.StateInvalid, err
	}
	logger := d.logger.With(zap.String("username", key.Username), zap.Int("year", key.Year))

	done, err := d.store.HasCompleted(ctx, key)
	if err != nil {
		return d.storeFailure(logger, "check completed", err)
	}
	if done {
		metrics.ObserveSubmission(outcomeDone)
		return profile.StateDone, nil
	}

	pending, err := d.store.HasPending(ctx, key)
	if err != nil {
		return d.storeFailure(logger, "check pending", err)
	}
	if pending {
		metrics.ObserveSubmission(outcomeWaiting)
		return profile.StateWait, nil
	}

	now := d.clock.Now()
	if err := d.store.MarkPending(ctx, profile.PendingMarker{Key: key, CreatedAt: now}); err != nil {
		if errors.Is(err, profile.ErrDuplicateKey) {
			logger.Debug("lost pending race")
			metrics.ObserveSubmission(outcomeRaceLost)
			return profile.StateWait, nil
		}
		return d.storeFailure(logger, "mark pending", err)
	}

	task := profile.Task{
		Key:         key,
		Token:       strings.TrimSpace(req.Token),
		Timezone:    strings.TrimSpace(req.Timezone),
		SubmittedAt: now,
	}
	if err := d.enqueue(ctx, task); err != nil {
		logger.Error("enqueue task failed", zap.Error(err))
		metrics.ObserveSubmission(outcomeQueueFailed)
		d.release(ctx, key, logger)
		return profile.StateUnknown, fmt.Errorf("%w: %w", profile.ErrQueueUnavailable, err)
	}

	logger.Info("profile task accepted")
	metrics.ObserveSubmission(outcomeAccepted)
	return profile.StateWait, nil
}

// Status reports DONE, WAIT, or UNKNOWN for a key without starting work.
func (d *Dispatcher) Status(ctx context.Context, username string, year int) (profile.State, error) {
	key, err := profile.NewJobKey(username, year, d.clock.Now())
	if err != nil {
		return profile.StateInvalid, err
	}
	done, err := d.store.HasCompleted(ctx, key)
	if err != nil {
		return profile.StateUnknown, fmt.Errorf("%w: check completed: %w", profile.ErrStoreUnavailable, err)
	}
	if done {
		return profile.StateDone, nil
	}
	pending, err := d.store.HasPending(ctx, key)
	if err != nil {
		return profile.StateUnknown, fmt.Errorf("%w: check pending: %w", profile.ErrStoreUnavailable, err)
	}
	if pending {
		return profile.StateWait, nil
	}
	return profile.StateUnknown, nil
}

// GetCompleted returns the stored context for a key, or ErrNotFound.
func (d *Dispatcher) GetCompleted(ctx context.Context, username string, year int) (profile.CompletedContext, error) {
	key, err := profile.NewJobKey(username, year, d.clock.Now())
	if err != nil {
		return profile.CompletedContext{}, err
	}
	completed, err := d.store.GetCompleted(ctx, key)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return profile.CompletedContext{}, err
		}
		return profile.CompletedContext{}, fmt.Errorf("%w: get completed: %w", profile.ErrStoreUnavailable, err)
	}
	return completed, nil
}

func (d *Dispatcher) validate(req SubmitRequest) (profile.JobKey, error) {
	key, err := profile.NewJobKey(req.Username, req.Year, d.clock.Now())
	if err != nil {
		return profile.JobKey{}, err
	}
	if strings.TrimSpace(req.Token) == "" {
		return profile.JobKey{}, fmt.Errorf("%w: access token is required", profile.ErrInvalidRequest)
	}
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		return profile.JobKey{}, fmt.Errorf("%w: timezone is required", profile.ErrInvalidRequest)
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return profile.JobKey{}, fmt.Errorf("%w: unknown timezone %q", profile.ErrInvalidRequest, tz)
	}
	return key, nil
}

// enqueue hands the task to the queue on a context that survives the caller
// going away, so an accepted marker always has a task behind it.
func (d *Dispatcher) enqueue(ctx context.Context, task profile.Task) error {
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.EnqueueTimeout)
	defer cancel()
	if err := d.queue.Enqueue(enqueueCtx, task); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

func (d *Dispatcher) release(ctx context.Context, key profile.JobKey, logger *zap.Logger) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.EnqueueTimeout)
	defer cancel()
	if err := d.store.DeletePending(releaseCtx, key); err != nil {
		logger.Error("release pending marker failed; reconciler will remove it on restart", zap.Error(err))
	}
}

func (d *Dispatcher) storeFailure(logger *zap.Logger, op string, err error) (profile.State, error) {
	logger.Error("store operation failed", zap.String("op", op), zap.Error(err))
	metrics.ObserveSubmission(outcomeStoreError)
	return profile.StateUnknown, fmt.Errorf("%w: %s: %w", profile.ErrStoreUnavailable, op, err)
}
