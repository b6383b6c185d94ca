package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/legaldocflow/internal/models"
)

const watcherBuffer = 64

// MemoryStore keeps records in process memory. It backs local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]*models.Document
	paths    map[string]string
	watchers map[chan ChangeEvent]struct{}
	now      func() time.Time
	last     time.Time
	closed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]*models.Document),
		paths:    make(map[string]string),
		watchers: make(map[chan ChangeEvent]struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if err := validateNew(doc); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("memory store is closed")
	}
	if _, dup := s.paths[doc.FilePath]; dup {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: file_path %s already exists", ErrInvalidDocument, doc.FilePath)
	}
	stored := cloneDocument(doc)
	stored.ID = uuid.NewString()
	stored.Status = models.StatusProcessing
	stored.CreatedAt = s.nextCreatedAtLocked()
	stored.UpdatedAt = nil
	stored.ProcessedData = nil
	s.docs[stored.ID] = stored
	s.paths[stored.FilePath] = stored.ID
	s.broadcastLocked(ChangeEvent{Op: OpInsert, DocumentID: stored.ID})
	s.mu.Unlock()
	return cloneDocument(stored), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*models.Document, error) {
	s.mu.RLock()
	out := make([]*models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, cloneDocument(doc))
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status models.DocumentStatus, createdBefore time.Time) ([]*models.Document, error) {
	s.mu.RLock()
	var out []*models.Document
	for _, doc := range s.docs {
		if doc.Status == status && doc.CreatedAt.Before(createdBefore) {
			out = append(out, cloneDocument(doc))
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Complete(ctx context.Context, id string, data *models.ProcessedData, at time.Time) error {
	return s.finalize(id, models.StatusCompleted, data, at)
}

func (s *MemoryStore) Fail(ctx context.Context, id string, at time.Time) error {
	return s.finalize(id, models.StatusFailed, nil, at)
}

func (s *MemoryStore) finalize(id string, status models.DocumentStatus, data *models.ProcessedData, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	if doc.Status != models.StatusProcessing {
		return ErrAlreadyFinalized
	}
	doc.Status = status
	doc.ProcessedData = cloneProcessedData(data)
	updated := at.UTC()
	doc.UpdatedAt = &updated
	s.broadcastLocked(ChangeEvent{Op: OpUpdate, DocumentID: id})
	return nil
}

// Watch delivers events through a buffered channel. When a slow consumer lets
// the buffer fill up, further events are dropped; the events still queued
// already guarantee another delivery.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	ch := make(chan ChangeEvent, watcherBuffer)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("memory store is closed")
	}
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	}()
	return ch, nil
}

// Delete removes a record and notifies watchers. Only tests and local tooling use it.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	delete(s.paths, doc.FilePath)
	s.broadcastLocked(ChangeEvent{Op: OpDelete, DocumentID: id})
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for ch := range s.watchers {
		close(ch)
		delete(s.watchers, ch)
	}
	return nil
}

// nextCreatedAtLocked keeps creation times strictly increasing so newest-first
// ordering is total even when two records land in the same clock tick.
func (s *MemoryStore) nextCreatedAtLocked() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

func (s *MemoryStore) broadcastLocked(ev ChangeEvent) {
	for ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func sortNewestFirst(docs []*models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}

func cloneDocument(doc *models.Document) *models.Document {
	c := *doc
	c.ProcessedData = cloneProcessedData(doc.ProcessedData)
	if doc.UpdatedAt != nil {
		t := *doc.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

func cloneProcessedData(data *models.ProcessedData) *models.ProcessedData {
	if data == nil {
		return nil
	}
	c := *data
	if data.Analysis != nil {
		a := *data.Analysis
		a.Plaintiffs = append([]string(nil), data.Analysis.Plaintiffs...)
		a.Defendants = append([]string(nil), data.Analysis.Defendants...)
		a.Claimants = append([]string(nil), data.Analysis.Claimants...)
		a.Amounts = append([]string(nil), data.Analysis.Amounts...)
		c.Analysis = &a
	}
	return &c
}
