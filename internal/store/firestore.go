package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/legaldocflow/internal/models"
)

// FirestoreStore keeps records in a Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) (*FirestoreStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *FirestoreStore) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if err := validateNew(doc); err != nil {
		return nil, err
	}
	newDoc := *doc
	newDoc.Status = models.StatusProcessing
	newDoc.CreatedAt = time.Now().UTC()
	newDoc.UpdatedAt = nil
	newDoc.ProcessedData = nil

	docRef := s.col().NewDoc()
	if _, err := docRef.Create(ctx, newDoc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}
	newDoc.ID = docRef.ID
	return &newDoc, nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*models.Document, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	snap, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return decodeSnapshot(snap)
}

func (s *FirestoreStore) List(ctx context.Context) ([]*models.Document, error) {
	return collect(s.col().OrderBy("created_at", firestore.Desc).Documents(ctx))
}

func (s *FirestoreStore) ListByStatus(ctx context.Context, st models.DocumentStatus, createdBefore time.Time) ([]*models.Document, error) {
	q := s.col().
		Where("status", "==", string(st)).
		Where("created_at", "<", createdBefore).
		OrderBy("created_at", firestore.Desc)
	return collect(q.Documents(ctx))
}

func (s *FirestoreStore) Complete(ctx context.Context, id string, data *models.ProcessedData, at time.Time) error {
	return s.finalize(ctx, id, []firestore.Update{
		{Path: "status", Value: string(models.StatusCompleted)},
		{Path: "processed_data", Value: data},
		{Path: "updated_at", Value: at.UTC()},
	})
}

func (s *FirestoreStore) Fail(ctx context.Context, id string, at time.Time) error {
	return s.finalize(ctx, id, []firestore.Update{
		{Path: "status", Value: string(models.StatusFailed)},
		{Path: "updated_at", Value: at.UTC()},
	})
}

// finalize applies updates inside a transaction that first checks the record
// is still processing.
func (s *FirestoreStore) finalize(ctx context.Context, id string, updates []firestore.Update) error {
	if id == "" {
		return ErrNotFound
	}
	docRef := s.col().Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		current, err := snap.DataAt("status")
		if err != nil {
			return fmt.Errorf("failed to read status: %w", err)
		}
		if current != string(models.StatusProcessing) {
			return ErrAlreadyFinalized
		}
		return tx.Update(docRef, updates)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyFinalized) {
			return err
		}
		return fmt.Errorf("failed to finalize document %s: %w", id, err)
	}
	return nil
}

// Watch listens to the collection with a snapshot query. The first snapshot
// is reported as a single OpSync event since writes may land between the
// caller's last read and the listener becoming active.
func (s *FirestoreStore) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	it := s.col().OrderBy("created_at", firestore.Desc).Snapshots(ctx)
	ch := make(chan ChangeEvent, watcherBuffer)

	go func() {
		defer close(ch)
		defer it.Stop()

		first := true
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, iterator.Done) && status.Code(err) != codes.Canceled {
					slog.Error("Firestore snapshot listener failed", "collection", s.collection, "error", err)
				}
				return
			}
			events := make([]ChangeEvent, 0, len(snap.Changes))
			if first {
				first = false
				events = append(events, ChangeEvent{Op: OpSync})
			} else {
				for _, change := range snap.Changes {
					events = append(events, ChangeEvent{Op: changeOp(change.Kind), DocumentID: change.Doc.Ref.ID})
				}
			}
			for _, ev := range events {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func changeOp(kind firestore.DocumentChangeKind) ChangeOp {
	switch kind {
	case firestore.DocumentAdded:
		return OpInsert
	case firestore.DocumentRemoved:
		return OpDelete
	default:
		return OpUpdate
	}
}

func collect(iter *firestore.DocumentIterator) ([]*models.Document, error) {
	defer iter.Stop()
	var docs []*models.Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}
		doc, err := decodeSnapshot(snap)
		if err != nil {
			slog.Warn("Skipping undecodable document record", "documentId", snap.Ref.ID, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*models.Document, error) {
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}
