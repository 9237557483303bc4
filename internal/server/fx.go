// Package server assembles the service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/api"
	"github.com/JakeFAU/my-github-review/internal/clock/system"
	"github.com/JakeFAU/my-github-review/internal/config"
	"github.com/JakeFAU/my-github-review/internal/dispatcher"
	githubfetcher "github.com/JakeFAU/my-github-review/internal/fetcher/github"
	"github.com/JakeFAU/my-github-review/internal/hash/sha256"
	"github.com/JakeFAU/my-github-review/internal/id/uuid"
	"github.com/JakeFAU/my-github-review/internal/policy/ratelimit"
	"github.com/JakeFAU/my-github-review/internal/profile"
	memorypublisher "github.com/JakeFAU/my-github-review/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/my-github-review/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/my-github-review/internal/queue/memory"
	"github.com/JakeFAU/my-github-review/internal/reconcile"
	profilestorage "github.com/JakeFAU/my-github-review/internal/storage"
	gcsstorage "github.com/JakeFAU/my-github-review/internal/storage/gcs"
	localstorage "github.com/JakeFAU/my-github-review/internal/storage/local"
	memoryStorage "github.com/JakeFAU/my-github-review/internal/storage/memory"
	"github.com/JakeFAU/my-github-review/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	store           profile.Store
	queue           *queueMemory.Queue
	reconciler      *reconcile.Reconciler
	dispatch        *dispatcher.Dispatcher
	apiServer       *api.Server
	gcsClient       *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
}

// Build creates the application's dependencies. Nothing is served until Run.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("archive_driver", cfg.Archive.Driver),
		zap.Int("workers", cfg.Dispatcher.Workers),
	)

	var err error
	app.store, err = profilestorage.OpenProfileStore(ctx, cfg.Store, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	blobStore, err := setupArchive(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	fetcher, starrer, err := setupGitHub(app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	clock := system.New()
	app.queue = queueMemory.NewQueue(cfg.Dispatcher.QueueDepth)
	app.reconciler = reconcile.New(app.store, logger.Named("reconcile"))

	deps := worker.Deps{
		Queue:     app.queue,
		Store:     app.store,
		Fetcher:   fetcher,
		Starrer:   starrer,
		BlobStore: blobStore,
		Publisher: publisher,
		Hasher:    sha256.New(),
		Clock:     clock,
		IDGen:     uuid.New(),
	}
	workerCfg := worker.Config{
		ArchivePrefix: cfg.Archive.Prefix,
		ContentType:   cfg.Archive.ContentType,
		Topic:         cfg.PubSub.TopicName,
	}
	workers := make([]dispatcher.Runner, 0, cfg.Dispatcher.Workers)
	for i := 0; i < cfg.Dispatcher.Workers; i++ {
		workers = append(workers, worker.New(deps, workerCfg, logger.Named("worker").With(zap.Int("index", i))))
	}
	app.dispatch = dispatcher.New(
		app.store,
		app.queue,
		workers,
		clock,
		dispatcher.Config{EnqueueTimeout: cfg.EnqueueTimeout()},
		logger.Named("dispatcher"),
	)
	app.apiServer = api.NewServer(app.dispatch, app.store, cfg.Auth, logger.Named("api"))
	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Reconcile removes orphaned pending markers. It must finish before any
// submit is accepted.
func (a *App) Reconcile(ctx context.Context) (int, error) {
	removed, err := a.reconciler.Run(ctx)
	if err != nil {
		return removed, fmt.Errorf("reconcile pending markers: %w", err)
	}
	return removed, nil
}

// Run reconciles the store, starts the workers and the HTTP server, and blocks
// until the context is canceled or a shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := a.Reconcile(ctx); err != nil {
		a.Close()
		return err
	}

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Dispatcher.Workers))
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("workers did not stop before shutdown deadline")
	}
	a.Close()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases the queue and every backing client.
func (a *App) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("profile store close failed", zap.Error(err))
		}
	}
}

// setupArchive returns nil when archiving is disabled.
func setupArchive(ctx context.Context, app *App) (profile.BlobStore, error) {
	cfg := app.cfg.Archive
	switch cfg.Driver {
	case config.ArchiveGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("archiving payloads to GCS", zap.String("bucket", cfg.GCSBucket))
		return blobStore, nil
	case config.ArchiveLocal:
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("archiving payloads locally", zap.String("path", cfg.LocalDir))
		return blobStore, nil
	case config.ArchiveMemory:
		app.logger.Info("archiving payloads in memory")
		return memoryStorage.NewBlobStore(), nil
	default:
		app.logger.Info("payload archive disabled")
		return nil, nil
	}
}

// setupPublisher returns nil when no topic is configured.
func setupPublisher(ctx context.Context, app *App) (profile.Publisher, error) {
	cfg := app.cfg.PubSub
	if cfg.TopicName == "" {
		app.logger.Info("completion notifications disabled")
		return nil, nil
	}
	if cfg.ProjectID == "" {
		app.logger.Warn("no Pub/Sub project configured, recording completion events in memory",
			zap.String("topic", cfg.TopicName))
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubPublisher = client.Publisher(cfg.TopicName)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.TopicName),
	)
	return gcppublisher.New(app.pubsubPublisher), nil
}

// setupGitHub builds the fetcher and, when a repository is configured, the starrer.
func setupGitHub(app *App) (profile.Fetcher, profile.Starrer, error) {
	cfg := app.cfg.GitHub
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RequestsPerSecond,
		DefaultBurst: cfg.Burst,
	})
	app.logger.Info("github client configured",
		zap.String("graphql_url", cfg.GraphQLURL),
		zap.Duration("timeout", app.cfg.GitHubTimeout()),
		zap.Float64("requests_per_second", cfg.RequestsPerSecond),
		zap.Int("burst", cfg.Burst),
	)
	fetcher := githubfetcher.NewFetcher(githubfetcher.FetcherConfig{
		GraphQLURL: cfg.GraphQLURL,
		Timeout:    app.cfg.GitHubTimeout(),
		Limiter:    limiter,
	}, app.logger.Named("fetcher"))

	if cfg.StarRepo == "" {
		app.logger.Info("repository starring disabled")
		return fetcher, nil, nil
	}
	starrer, err := githubfetcher.NewStarrer(githubfetcher.StarrerConfig{
		APIBaseURL: cfg.APIBaseURL,
		Repo:       cfg.StarRepo,
		Timeout:    app.cfg.GitHubTimeout(),
		Limiter:    limiter,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("starrer init failed: %w", err)
	}
	return fetcher, starrer, nil
}
