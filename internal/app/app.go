// Package app builds the service graph from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/legaldocflow/internal/analysis"
	"github.com/Lllllllleong/legaldocflow/internal/blob"
	"github.com/Lllllllleong/legaldocflow/internal/config"
	"github.com/Lllllllleong/legaldocflow/internal/dispatch"
	"github.com/Lllllllleong/legaldocflow/internal/extract"
	"github.com/Lllllllleong/legaldocflow/internal/gcp"
	"github.com/Lllllllleong/legaldocflow/internal/handlers"
	"github.com/Lllllllleong/legaldocflow/internal/notify"
	"github.com/Lllllllleong/legaldocflow/internal/services"
	"github.com/Lllllllleong/legaldocflow/internal/session"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

// App holds every long-lived component of a running instance.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     store.Store
	Blobs     blob.Store
	Pool      *dispatch.Pool
	Ingestion *services.IngestionService
	Feed      *services.StatusFeed
	Sweeper   *services.Sweeper
	Verifier  *session.Verifier

	storageClient *storage.Client
	closers       []func() error
}

// New connects the configured backends and wires the services. On error
// everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Shutdown(context.Background())
		}
	}()

	if a.Store, err = OpenStore(ctx, cfg); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	if a.Blobs, err = a.openBlobs(ctx); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Blobs.Close)

	opts := []services.IngestionOption{services.WithLogger(logger)}
	if cfg.EnableAnalysis {
		vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.AnalysisModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		a.closers = append(a.closers, vertexClient.Close)
		analyzer, err := analysis.NewVertexAnalyzer(vertexClient)
		if err != nil {
			return nil, err
		}
		opts = append(opts, services.WithAnalyzer(analyzer))
	}

	notifiers, err := a.openNotifiers(ctx)
	if err != nil {
		return nil, err
	}
	switch len(notifiers) {
	case 0:
	case 1:
		opts = append(opts, services.WithNotifier(notifiers[0]))
	default:
		opts = append(opts, services.WithNotifier(notifiers))
	}

	a.Pool, err = dispatch.New(cfg.WorkerPoolSize,
		dispatch.WithTaskTimeout(cfg.ProcessingTimeout),
		dispatch.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	if a.Ingestion, err = services.NewIngestionService(a.Store, a.Blobs, extract.NewRouter(), a.Pool, opts...); err != nil {
		return nil, err
	}
	if a.Feed, err = services.NewStatusFeed(a.Store, logger); err != nil {
		return nil, err
	}
	if a.Sweeper, err = services.NewSweeper(a.Store, cfg.StaleAfter, logger); err != nil {
		return nil, err
	}
	if cfg.JWTSecret != "" {
		if a.Verifier, err = session.NewVerifier(cfg.JWTSecret); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// OpenStore connects the configured Record Store.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.RecordBackend {
	case config.BackendFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.FirestoreDatabase)
		if err != nil {
			return nil, err
		}
		st, err := store.NewFirestoreStore(client, cfg.FirestoreCollection)
		if err != nil {
			client.Close()
			return nil, err
		}
		return st, nil
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg)
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown RECORD_BACKEND %q", cfg.RecordBackend)
	}
}

// OpenPostgres connects the Postgres Record Store.
func OpenPostgres(ctx context.Context, cfg *config.Config) (*store.PostgresStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable must be set")
	}
	pool, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	st, err := store.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

func (a *App) openBlobs(ctx context.Context) (blob.Store, error) {
	switch a.Config.BlobBackend {
	case config.BlobGCS:
		client, err := a.storage(ctx)
		if err != nil {
			return nil, err
		}
		return blob.NewGCSStore(client, a.Config.DocumentsBucket)
	case config.BlobLocal:
		return blob.NewLocalStore(a.Config.LocalBlobDir, a.Config.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown BLOB_BACKEND %q", a.Config.BlobBackend)
	}
}

// storage returns the shared Cloud Storage client, creating it on first use.
// GCSStore.Close closes it when the GCS blob backend is in use.
func (a *App) storage(ctx context.Context) (*storage.Client, error) {
	if a.storageClient != nil {
		return a.storageClient, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	a.storageClient = client
	if a.Config.BlobBackend != config.BlobGCS {
		a.closers = append(a.closers, client.Close)
	}
	return client, nil
}

func (a *App) openNotifiers(ctx context.Context) (notify.Multi, error) {
	var notifiers notify.Multi
	if a.Config.WorkflowID != "" {
		client, err := gcp.NewExecutionsClient(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		wf, err := notify.NewWorkflowNotifier(client, a.Config.ProjectID, a.Config.WorkflowLocation, a.Config.WorkflowID)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, wf)
	}
	if a.Config.EventSinkURL != "" {
		ev, err := notify.NewEventNotifier(a.Config.EventSinkURL)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, ev)
	}
	return notifiers, nil
}

// UploadHandler is the upload entry point.
func (a *App) UploadHandler() http.Handler {
	return handlers.NewUploadHandler(a.Ingestion, a.Config.MaxUploadBytes, a.Verifier, a.Logger)
}

// DocumentsRouter serves the read API and the Status Feed stream.
func (a *App) DocumentsRouter() *gin.Engine {
	return handlers.NewDocumentsRouter(a.Store, a.Feed, a.Verifier, a.Logger)
}

func (a *App) SweepHandler() http.Handler {
	return handlers.NewSweepHandler(a.Sweeper, a.Logger)
}

// BucketIngestHandler handles object.finalized events from inbox buckets.
func (a *App) BucketIngestHandler(ctx context.Context) (*handlers.BucketIngestHandler, error) {
	client, err := a.storage(ctx)
	if err != nil {
		return nil, err
	}
	return handlers.NewBucketIngestHandler(gcp.NewBucketReader(client), a.Ingestion,
		a.Config.DocumentsBucket, a.Config.MaxUploadBytes, a.Logger), nil
}

// Handler routes every HTTP endpoint of a single-process deployment.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/process-document", a.UploadHandler())
	mux.Handle("/sweep", a.SweepHandler())
	mux.Handle("/", a.DocumentsRouter())
	return mux
}

// Shutdown waits for background processing to drain, then closes every client.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.Pool != nil {
		if perr := a.Pool.Shutdown(ctx); perr != nil {
			err = fmt.Errorf("worker pool did not drain: %w", perr)
		}
	}
	return errors.Join(err, a.close())
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
