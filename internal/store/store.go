package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Lllllllleong/legaldocflow/internal/models"
)

// ChangeOp names the kind of row change carried by a ChangeEvent.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
	// OpSync means the stream was (re)established and any record may have
	// changed since the caller last looked.
	OpSync ChangeOp = "sync"
)

// ChangeEvent is emitted for every insert, update or delete on the document table.
type ChangeEvent struct {
	Op         ChangeOp
	DocumentID string
}

// Store is the Record Store holding Document records.
//
// Complete and Fail only succeed while the record is still processing, so a
// record is finalized at most once no matter how many writers race.
type Store interface {
	// Create assigns the id and created_at of doc and persists it.
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	// List returns every record, newest first by created_at.
	List(ctx context.Context) ([]*models.Document, error)
	// ListByStatus returns records in status created strictly before createdBefore.
	ListByStatus(ctx context.Context, status models.DocumentStatus, createdBefore time.Time) ([]*models.Document, error)
	Complete(ctx context.Context, id string, data *models.ProcessedData, at time.Time) error
	Fail(ctx context.Context, id string, at time.Time) error
	// Watch subscribes to change events before returning. The channel is
	// closed when ctx is done or the underlying stream ends.
	Watch(ctx context.Context) (<-chan ChangeEvent, error)
	Close() error
}

func validateNew(doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	if doc.FilePath == "" {
		return fmt.Errorf("%w: file_path is required", ErrInvalidDocument)
	}
	if doc.OriginalFilename == "" {
		return fmt.Errorf("%w: original_filename is required", ErrInvalidDocument)
	}
	return nil
}
