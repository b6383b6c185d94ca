// Package handlers adapts the ingestion services to HTTP and CloudEvent
// triggers.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/legaldocflow/internal/models"
)

// Headers allowed on cross-origin requests from the browser client.
const corsAllowHeaders = "authorization, x-client-info, apikey, content-type"

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err, "status", status)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
