package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldocflow/internal/blob"
	"github.com/Lllllllleong/legaldocflow/internal/dispatch"
	"github.com/Lllllllleong/legaldocflow/internal/extract"
	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

// inlineDispatcher runs tasks on the calling goroutine.
type inlineDispatcher struct{}

func (inlineDispatcher) Go(ctx context.Context, name string, task dispatch.Task) error {
	task(context.WithoutCancel(ctx))
	return nil
}

// heldDispatcher records tasks so a test can inspect the admitted state
// before running them.
type heldDispatcher struct {
	mu    sync.Mutex
	tasks []func()
	err   error
}

func (d *heldDispatcher) Go(ctx context.Context, name string, task dispatch.Task) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	detached := context.WithoutCancel(ctx)
	d.tasks = append(d.tasks, func() { task(detached) })
	return nil
}

func (d *heldDispatcher) runAll() {
	d.mu.Lock()
	tasks := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, t := range tasks {
		t()
	}
}

type failingBlobs struct {
	blob.Store
	uploadErr error
	fetchErr  error
}

func (f *failingBlobs) Upload(ctx context.Context, key, contentType string, data []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	return f.Store.Upload(ctx, key, contentType, data)
}

func (f *failingBlobs) Fetch(ctx context.Context, key string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.Store.Fetch(ctx, key)
}

type countingExtractor struct {
	mu    sync.Mutex
	inner extract.Extractor
	err   error
	calls map[string]int
}

func (c *countingExtractor) Extract(ctx context.Context, contentType string, data []byte) (*extract.Result, error) {
	c.mu.Lock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[contentType]++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Extract(ctx, contentType, data)
}

type panickingExtractor struct{}

func (panickingExtractor) Extract(ctx context.Context, contentType string, data []byte) (*extract.Result, error) {
	panic("nil font dictionary")
}

type panickingNotifier struct{}

func (panickingNotifier) DocumentFinalized(ctx context.Context, doc *models.Document) error {
	panic("workflow client not initialized")
}

// failStore makes the failure update itself fail.
type failStore struct {
	store.Store
}

func (failStore) Fail(ctx context.Context, id string, at time.Time) error {
	return errors.New("record store unavailable")
}

type stubAnalyzer struct {
	out *models.LegalAnalysis
	err error
}

func (s stubAnalyzer) Analyze(ctx context.Context, text string) (*models.LegalAnalysis, error) {
	return s.out, s.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	docs []*models.Document
}

func (r *recordingNotifier) DocumentFinalized(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

func newLocalBlobs(t *testing.T) *blob.LocalStore {
	t.Helper()
	b, err := blob.NewLocalStore(t.TempDir(), "http://files.test")
	require.NoError(t, err)
	return b
}
