package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/services"
	"github.com/Lllllllleong/legaldocflow/internal/session"
)

const uploadStartedMessage = "Document processing started"

// Submitter is the part of the ingestion service the upload endpoint drives.
type Submitter interface {
	Submit(ctx context.Context, up services.Upload) (*models.Document, error)
}

// UploadHandler is the HTTP upload entry point.
type UploadHandler struct {
	submitter Submitter
	maxBytes  int64
	verifier  *session.Verifier
	logger    *slog.Logger
}

// NewUploadHandler returns the upload endpoint. A nil verifier disables
// authentication.
func NewUploadHandler(submitter Submitter, maxBytes int64, verifier *session.Verifier, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{submitter: submitter, maxBytes: maxBytes, verifier: verifier, logger: logger}
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx := r.Context()
	if h.verifier != nil {
		sess, err := h.verifier.VerifyHeader(r.Header.Get("Authorization"))
		if err != nil {
			h.logger.Warn("Rejected unauthenticated upload", "error", err)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx = session.WithSession(ctx, sess)
	}

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	up, err := h.readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		case errors.Is(err, services.ErrNoFile):
			writeError(w, http.StatusBadRequest, "No file uploaded")
		default:
			h.logger.Error("Failed to read upload", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	doc, err := h.submitter.Submit(ctx, up)
	if err != nil {
		if errors.Is(err, services.ErrNoFile) {
			writeError(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		h.logger.Error("Failed to admit upload", "error", err, "filename", up.Filename)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.UploadResponse{
		Message:  uploadStartedMessage,
		FilePath: doc.FilePath,
	})
}

func (h *UploadHandler) readUpload(r *http.Request) (services.Upload, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Upload{}, err
		}
		if errors.Is(err, http.ErrMissingFile) {
			return services.Upload{}, services.ErrNoFile
		}
		return services.Upload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return services.Upload{}, err
	}
	return services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
