package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/services"
)

// ObjectReader reads an object from an inbox bucket.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, name string) ([]byte, error)
}

// Ingestor admits and processes a document in the caller's goroutine.
type Ingestor interface {
	Admit(ctx context.Context, up services.Upload) (*models.Document, error)
	Process(ctx context.Context, doc *models.Document, data []byte) error
}

// BucketIngestHandler turns storage object.finalized events from an inbox
// bucket into documents. The event function is already a background
// execution, so processing runs synchronously.
type BucketIngestHandler struct {
	reader          ObjectReader
	ingestor        Ingestor
	documentsBucket string
	maxBytes        int64
	logger          *slog.Logger
}

func NewBucketIngestHandler(reader ObjectReader, ingestor Ingestor, documentsBucket string, maxBytes int64, logger *slog.Logger) *BucketIngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BucketIngestHandler{
		reader:          reader,
		ingestor:        ingestor,
		documentsBucket: documentsBucket,
		maxBytes:        maxBytes,
		logger:          logger,
	}
}

// HandleEvent processes one GCS CloudEvent. Returning an error asks the
// platform to redeliver, so only failures before admission are returned.
func (h *BucketIngestHandler) HandleEvent(ctx context.Context, e cloudevents.Event) error {
	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		h.logger.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	logCtx := h.logger.With("eventId", e.ID(), "bucket", gcsEvent.Bucket, "object", gcsEvent.Name)
	switch {
	case gcsEvent.Bucket == "" || gcsEvent.Name == "":
		logCtx.Warn("Ignoring event without bucket or object name.")
		return nil
	case gcsEvent.Bucket == h.documentsBucket:
		logCtx.Debug("Ignoring object in the documents bucket.")
		return nil
	case gcsEvent.Name[len(gcsEvent.Name)-1] == '/':
		logCtx.Debug("Ignoring folder placeholder object.")
		return nil
	}
	if size, err := strconv.ParseInt(gcsEvent.Size, 10, 64); err == nil && h.maxBytes > 0 && size > h.maxBytes {
		logCtx.Warn("Ignoring object larger than the upload limit.", "sizeBytes", size, "maxBytes", h.maxBytes)
		return nil
	}

	data, err := h.reader.ReadObject(ctx, gcsEvent.Bucket, gcsEvent.Name)
	if err != nil {
		logCtx.Error("Failed to read inbox object", "error", err)
		return fmt.Errorf("failed to read gs://%s/%s: %w", gcsEvent.Bucket, gcsEvent.Name, err)
	}

	doc, err := h.ingestor.Admit(ctx, services.Upload{
		Filename:    path.Base(gcsEvent.Name),
		ContentType: gcsEvent.ContentType,
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, services.ErrNoFile) {
			logCtx.Warn("Ignoring object without a usable filename.")
			return nil
		}
		logCtx.Error("Failed to admit inbox object", "error", err)
		return err
	}

	// Failures after admission are recorded on the document; redelivery would
	// only create a duplicate record.
	if err := h.ingestor.Process(ctx, doc, data); err != nil {
		logCtx.Warn("Inbox object processing failed.", "documentId", doc.ID, "error", err)
	}
	return nil
}
