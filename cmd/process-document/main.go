package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/legaldocflow/internal/app"
	"github.com/Lllllllleong/legaldocflow/internal/config"
	"github.com/Lllllllleong/legaldocflow/internal/models"
)

var (
	uploadHandler http.Handler
	once          sync.Once
	initErr       error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("ProcessDocument", processDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// processDocument admits the upload and returns while the document is
// processed in the background. The instance must keep CPU allocated after the
// response for the background task to finish.
func processDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		uploadHandler, initErr = newUploadHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: ProcessDocument initialization failed", "error", initErr)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse{Error: "failed to initialize service"})
		return
	}

	uploadHandler.ServeHTTP(w, r)
}

func newUploadHandler(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.NewLogger())
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	return a.UploadHandler(), nil
}
