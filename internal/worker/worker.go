// Package worker runs background profile tasks pulled from the task queue.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/metrics"
	"github.com/JakeFAU/my-github-review/internal/profile"
)

// Task results reported to metrics.
const (
	ResultSucceeded   = "succeeded"
	ResultFetchFailed = "fetch_failed"
	ResultDuplicate   = "duplicate"
	ResultSaveFailed  = "save_failed"
)

// completedSaver is the only store capability a worker needs.
type completedSaver interface {
	SaveCompleted(ctx context.Context, completed profile.CompletedContext) error
}

// Config is the immutable per-worker configuration.
type Config struct {
	ArchivePrefix string
	ContentType   string
	Topic         string
}

// Deps bundles the collaborators of a Worker. Starrer, BlobStore, and
// Publisher are optional.
type Deps struct {
	Queue     profile.Queue
	Store     completedSaver
	Fetcher   profile.Fetcher
	Starrer   profile.Starrer
	BlobStore profile.BlobStore
	Publisher profile.Publisher
	Hasher    profile.Hasher
	Clock     profile.Clock
	IDGen     profile.IDGenerator
}

// Worker consumes tasks and runs fetch, save, and star for each.
type Worker struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{deps: deps, cfg: cfg, logger: logger}
}

// Run processes tasks until ctx is canceled or the queue is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, profile.ErrQueueClosed) {
				w.logger.Info("task queue closed, worker exiting")
				return
			}
			w.logger.Warn("dequeue failed", zap.Error(err))
			continue
		}
		w.Handle(ctx, task)
	}
}

// Handle runs one task. Failures are logged; the pending marker stays in place.
func (w *Worker) Handle(ctx context.Context, task profile.Task) {
	metrics.IncActiveTasks()
	defer metrics.DecActiveTasks()

	logger := w.logger.With(zap.String("username", task.Key.Username), zap.Int("year", task.Key.Year))
	start := time.Now()
	result := w.fetchAndSave(ctx, task, logger)
	metrics.ObserveTask(result, time.Since(start))

	w.star(ctx, task, logger)
}

func (w *Worker) fetchAndSave(ctx context.Context, task profile.Task, logger *zap.Logger) string {
	payload, err := w.deps.Fetcher.Fetch(ctx, task.FetchRequest())
	if err != nil {
		logger.Error("profile fetch failed", zap.Error(err))
		return ResultFetchFailed
	}
	completed := profile.CompletedContext{
		Key:       task.Key,
		Payload:   payload,
		CreatedAt: w.deps.Clock.Now(),
	}
	if err := w.deps.Store.SaveCompleted(ctx, completed); err != nil {
		if errors.Is(err, profile.ErrDuplicateKey) {
			logger.Warn("completed context already stored", zap.Error(err))
			return ResultDuplicate
		}
		logger.Error("save completed context failed", zap.Error(err))
		return ResultSaveFailed
	}
	logger.Info("profile completed", zap.Int("payload_bytes", len(payload)))
	w.afterSave(ctx, completed, logger)
	return ResultSucceeded
}

// afterSave archives and announces the payload. Both steps are best effort.
func (w *Worker) afterSave(ctx context.Context, completed profile.CompletedContext, logger *zap.Logger) {
	if w.deps.BlobStore == nil && w.deps.Publisher == nil {
		return
	}
	hash, err := w.deps.Hasher.Hash([]byte(completed.Payload))
	if err != nil {
		logger.Warn("hash payload failed", zap.Error(err))
		return
	}

	var uri string
	if w.deps.BlobStore != nil {
		uri, err = w.deps.BlobStore.PutObject(ctx, w.archivePath(completed.Key, hash), w.cfg.ContentType,
			bytes.NewReader([]byte(completed.Payload)))
		if err != nil {
			logger.Warn("archive payload failed", zap.Error(err))
			uri = ""
		} else {
			logger.Debug("payload archived", zap.String("uri", uri))
		}
	}

	if w.deps.Publisher == nil {
		return
	}
	eventID, err := w.deps.IDGen.NewID()
	if err != nil {
		logger.Warn("generate event id failed", zap.Error(err))
		return
	}
	event := profile.CompletionEvent{
		EventID:     eventID,
		Username:    completed.Key.Username,
		Year:        completed.Key.Year,
		Hash:        hash,
		ArchiveURI:  uri,
		CompletedAt: completed.CreatedAt,
	}
	msgID, err := w.deps.Publisher.Publish(ctx, w.cfg.Topic, event)
	if err != nil {
		logger.Warn("publish completion event failed", zap.Error(err))
		return
	}
	logger.Debug("completion event published", zap.String("message_id", msgID))
}

func (w *Worker) star(ctx context.Context, task profile.Task, logger *zap.Logger) {
	if w.deps.Starrer == nil {
		return
	}
	if err := w.deps.Starrer.Star(ctx, task.Token); err != nil {
		metrics.ObserveStar("failed")
		logger.Warn("star repository failed", zap.Error(err))
		return
	}
	metrics.ObserveStar("succeeded")
}

func (w *Worker) archivePath(key profile.JobKey, hash string) string {
	return path.Join(w.cfg.ArchivePrefix, strconv.Itoa(key.Year), url.PathEscape(key.Username),
		fmt.Sprintf("%s.json", hash))
}
