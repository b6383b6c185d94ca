package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/legaldocflow/internal/models"
)

// StaleSweeper fails records stuck in processing.
type StaleSweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

// NewSweepHandler runs one sweep per request. It is the Cloud Scheduler
// target for SweepStaleDocuments.
func NewSweepHandler(sweeper StaleSweeper, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET, POST")
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		n, err := sweeper.SweepOnce(r.Context())
		if err != nil {
			logger.Error("Stale document sweep failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, models.SweepResponse{FailedCount: n})
	}
}
