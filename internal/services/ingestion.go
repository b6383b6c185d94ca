package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Lllllllleong/legaldocflow/internal/analysis"
	"github.com/Lllllllleong/legaldocflow/internal/blob"
	"github.com/Lllllllleong/legaldocflow/internal/dispatch"
	"github.com/Lllllllleong/legaldocflow/internal/extract"
	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/notify"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

// statusUpdateTimeout bounds the best-effort failure update and the
// notifications, which run even when the processing context has expired.
const statusUpdateTimeout = 30 * time.Second

// Upload is one submitted file.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Dispatcher schedules background tasks that outlive the request.
type Dispatcher interface {
	Go(ctx context.Context, name string, task dispatch.Task) error
}

// IngestionOption configures optional IngestionService collaborators.
type IngestionOption func(*IngestionService)

// WithAnalyzer attaches legal analysis to completed documents.
func WithAnalyzer(a analysis.Analyzer) IngestionOption {
	return func(s *IngestionService) { s.analyzer = a }
}

// WithNotifier hands every finalized document to n.
func WithNotifier(n notify.Notifier) IngestionOption {
	return func(s *IngestionService) { s.notifier = n }
}

func WithClock(now func() time.Time) IngestionOption {
	return func(s *IngestionService) { s.now = now }
}

func WithLogger(l *slog.Logger) IngestionOption {
	return func(s *IngestionService) { s.logger = l }
}

// IngestionService admits uploads synchronously and processes them in the background.
type IngestionService struct {
	store      store.Store
	blobs      blob.Store
	extractor  extract.Extractor
	dispatcher Dispatcher
	analyzer   analysis.Analyzer
	notifier   notify.Notifier
	now        func() time.Time
	newKey     func(filename string) string
	logger     *slog.Logger
}

func NewIngestionService(st store.Store, blobs blob.Store, extractor extract.Extractor, dispatcher Dispatcher, opts ...IngestionOption) (*IngestionService, error) {
	switch {
	case st == nil:
		return nil, ErrStoreRequired
	case blobs == nil:
		return nil, ErrBlobStoreRequired
	case extractor == nil:
		return nil, ErrExtractorRequired
	case dispatcher == nil:
		return nil, ErrDispatcherRequired
	}
	s := &IngestionService{
		store:      st,
		blobs:      blobs,
		extractor:  extractor,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		newKey:     StorageKey,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit admits the upload and schedules its processing. The returned record
// is still processing; its FilePath is what the caller is told about.
func (s *IngestionService) Submit(ctx context.Context, up Upload) (*models.Document, error) {
	doc, err := s.Admit(ctx, up)
	if err != nil {
		return nil, err
	}
	logCtx := s.logger.With("documentId", doc.ID, "filePath", doc.FilePath)

	data := up.Data
	err = s.dispatcher.Go(ctx, "process "+doc.ID, func(taskCtx context.Context) {
		// Failures are recorded on the document and logged inside Process.
		_ = s.Process(taskCtx, doc, data)
	})
	if err != nil {
		logCtx.Error("Failed to schedule background processing", "error", err)
		s.markFailed(ctx, logCtx, doc)
		return nil, fmt.Errorf("failed to schedule processing: %w", err)
	}
	logCtx.Info("Document admitted.", "filename", doc.OriginalFilename, "contentType", doc.ContentType, "sizeBytes", len(data))
	return doc, nil
}

// Admit creates the processing record for up under a fresh storage key.
func (s *IngestionService) Admit(ctx context.Context, up Upload) (*models.Document, error) {
	if up.Filename == "" {
		return nil, ErrNoFile
	}
	doc, err := s.store.Create(ctx, &models.Document{
		OriginalFilename: up.Filename,
		FilePath:         s.newKey(up.Filename),
		ContentType:      up.ContentType,
		Status:           models.StatusProcessing,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}
	return doc, nil
}

// Process runs upload, read-back, extraction and optional analysis for doc,
// then performs the single terminal update. Every failure, a panic in any
// collaborator included, ends in a best-effort transition to failed.
func (s *IngestionService) Process(ctx context.Context, doc *models.Document, data []byte) (err error) {
	logCtx := s.logger.With("documentId", doc.ID, "filePath", doc.FilePath)
	defer func() {
		if r := recover(); r != nil {
			logCtx.Error("CRITICAL: Document processing panicked", "panic", r, "stack", string(debug.Stack()))
			s.markFailed(ctx, logCtx, doc)
			err = fmt.Errorf("%w: %v", ErrProcessingPanicked, r)
		}
	}()

	if current, err := s.store.Get(ctx, doc.ID); err == nil && current.Status.IsTerminal() {
		logCtx.Info("Document already finalized. Skipping.", "status", current.Status)
		return nil
	} else if err != nil {
		logCtx.Warn("Could not read current document status, processing anyway", "error", err)
	}

	logCtx.Info("Processing document.")
	payload, err := s.buildPayload(ctx, logCtx, doc, data)
	if err != nil {
		return s.handleError(ctx, logCtx, doc, err)
	}

	at := s.now()
	if err := s.store.Complete(ctx, doc.ID, payload, at); err != nil {
		if errors.Is(err, store.ErrAlreadyFinalized) {
			logCtx.Warn("Document was finalized by another writer, result discarded.")
			return nil
		}
		return s.handleError(ctx, logCtx, doc, fmt.Errorf("failed to complete document record: %w", err))
	}

	done := *doc
	done.Status = models.StatusCompleted
	done.ProcessedData = payload
	done.UpdatedAt = &at
	logCtx.Info("Document processing complete.", "pageCount", payload.Metadata.PageCount, "contentLength", len(payload.Content))
	s.notify(ctx, logCtx, &done)
	return nil
}

func (s *IngestionService) buildPayload(ctx context.Context, logCtx *slog.Logger, doc *models.Document, data []byte) (*models.ProcessedData, error) {
	if err := s.blobs.Upload(ctx, doc.FilePath, doc.ContentType, data); err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}
	sourceURL := s.blobs.PublicURL(doc.FilePath)

	stored, err := s.blobs.Fetch(ctx, doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read back stored document: %w", err)
	}

	result, err := s.extractor.Extract(ctx, doc.ContentType, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	payload := &models.ProcessedData{
		Content: result.Text,
		Metadata: models.ProcessedMetadata{
			Filename:  doc.OriginalFilename,
			FileType:  doc.ContentType,
			PageCount: result.PageCount,
			SizeBytes: int64(len(stored)),
			Checksum:  checksum(stored),
			SourceURL: sourceURL,
		},
	}

	if s.analyzer != nil && result.Text != "" {
		a, err := s.analyzer.Analyze(ctx, result.Text)
		switch {
		case err != nil:
			logCtx.Warn("Legal analysis failed, completing without it", "error", err)
		case a.IsEmpty():
			logCtx.Info("Legal analysis found nothing to report.")
		default:
			payload.Analysis = a
		}
	}

	payload.Metadata.ProcessedAt = s.now()
	return payload, nil
}

func (s *IngestionService) handleError(ctx context.Context, logCtx *slog.Logger, doc *models.Document, cause error) error {
	logCtx.Error("Document processing failed", "error", cause)
	s.markFailed(ctx, logCtx, doc)
	return cause
}

// markFailed performs the best-effort transition to failed. It uses its own
// deadline since ctx may be the one that just expired.
func (s *IngestionService) markFailed(ctx context.Context, logCtx *slog.Logger, doc *models.Document) {
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusUpdateTimeout)
	defer cancel()

	at := s.now()
	if err := s.store.Fail(updateCtx, doc.ID, at); err != nil {
		if errors.Is(err, store.ErrAlreadyFinalized) {
			logCtx.Warn("Document already finalized, failure not recorded.")
			return
		}
		logCtx.Error("CRITICAL: Failed to update document status to failed after a processing error.", "updateError", err)
		return
	}

	failed := *doc
	failed.Status = models.StatusFailed
	failed.ProcessedData = nil
	failed.UpdatedAt = &at
	s.notify(ctx, logCtx, &failed)
}

func (s *IngestionService) notify(ctx context.Context, logCtx *slog.Logger, doc *models.Document) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusUpdateTimeout)
	defer cancel()
	if err := s.notifier.DocumentFinalized(notifyCtx, doc); err != nil {
		logCtx.Error("Failed to notify downstream consumers", "status", doc.Status, "error", err)
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
