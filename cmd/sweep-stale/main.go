package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/legaldocflow/internal/app"
	"github.com/Lllllllleong/legaldocflow/internal/config"
	"github.com/Lllllllleong/legaldocflow/internal/handlers"
	"github.com/Lllllllleong/legaldocflow/internal/services"
)

var (
	sweepHandler http.Handler
	once         sync.Once
	initErr      error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Invoked by Cloud Scheduler.
	functions.HTTP("SweepStaleDocuments", sweepStaleDocuments)
}

func main() {}

func sweepStaleDocuments(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		sweepHandler, initErr = newSweepHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: SweepStaleDocuments initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	sweepHandler.ServeHTTP(w, r)
}

// newSweepHandler only needs the Record Store, so it skips the rest of the app.
func newSweepHandler(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sweeper, err := services.NewSweeper(st, cfg.StaleAfter, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return handlers.NewSweepHandler(sweeper, logger), nil
}
