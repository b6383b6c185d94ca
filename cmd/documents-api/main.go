package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/legaldocflow/internal/app"
	"github.com/Lllllllleong/legaldocflow/internal/config"
)

var (
	router  *gin.Engine
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	functions.HTTP("Documents", documents)
}

func main() {}

// documents serves the read API: GET /documents, GET /documents/:id and the
// Server-Sent Events Status Feed at GET /documents/stream.
func documents(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		router, initErr = newRouter(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Documents initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}

func newRouter(ctx context.Context) (*gin.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.NewLogger())
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	return a.DocumentsRouter(), nil
}
