package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/legaldocflow/internal/app"
	"github.com/Lllllllleong/legaldocflow/internal/config"
	"github.com/Lllllllleong/legaldocflow/internal/handlers"
)

var (
	ingestHandler *handlers.BucketIngestHandler
	once          sync.Once
	initErr       error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Triggered by google.cloud.storage.object.v1.finalized on the inbox bucket.
	functions.CloudEvent("IngestFromBucket", ingestFromBucket)
}

func main() {}

func ingestFromBucket(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		ingestHandler, initErr = newIngestHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	// Errors are logged with context inside HandleEvent. Returning one marks
	// the invocation as failed so the event is redelivered.
	return ingestHandler.HandleEvent(ctx, e)
}

func newIngestHandler(ctx context.Context) (*handlers.BucketIngestHandler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.NewLogger())
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	return a.BucketIngestHandler(ctx)
}
