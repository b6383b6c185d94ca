package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

type deliveries struct {
	mu    sync.Mutex
	lists [][]*models.Document
	ch    chan struct{}
}

func newDeliveries() *deliveries {
	return &deliveries{ch: make(chan struct{}, 100)}
}

func (d *deliveries) deliver(docs []*models.Document) {
	d.mu.Lock()
	d.lists = append(d.lists, docs)
	d.mu.Unlock()
	d.ch <- struct{}{}
}

func (d *deliveries) wait(t *testing.T) []*models.Document {
	t.Helper()
	select {
	case <-d.ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lists[len(d.lists)-1]
}

func (d *deliveries) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lists)
}

func TestStatusFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("should deliver the current list newest first on activation", func(t *testing.T) {
		st := store.NewMemoryStore()
		older, err := st.Create(ctx, &models.Document{OriginalFilename: "a.pdf", FilePath: "a.pdf"})
		require.NoError(t, err)
		newer, err := st.Create(ctx, &models.Document{OriginalFilename: "b.pdf", FilePath: "b.pdf"})
		require.NoError(t, err)

		feed, err := NewStatusFeed(st, nil)
		require.NoError(t, err)
		d := newDeliveries()
		sub, err := feed.Activate(ctx, d.deliver)
		require.NoError(t, err)
		defer sub.Cancel()

		docs := d.wait(t)
		require.Len(t, docs, 2)
		assert.Equal(t, newer.ID, docs[0].ID)
		assert.Equal(t, older.ID, docs[1].ID)
	})

	t.Run("should redeliver the full list on every change", func(t *testing.T) {
		st := store.NewMemoryStore()
		feed, err := NewStatusFeed(st, nil)
		require.NoError(t, err)
		d := newDeliveries()
		sub, err := feed.Activate(ctx, d.deliver)
		require.NoError(t, err)
		defer sub.Cancel()
		assert.Empty(t, d.wait(t))

		doc, err := st.Create(ctx, &models.Document{OriginalFilename: "a.pdf", FilePath: "a.pdf"})
		require.NoError(t, err)
		docs := d.wait(t)
		require.Len(t, docs, 1)
		assert.Equal(t, models.StatusProcessing, docs[0].Status)

		require.NoError(t, st.Complete(ctx, doc.ID, &models.ProcessedData{Content: "done"}, time.Now()))
		docs = d.wait(t)
		require.Len(t, docs, 1)
		assert.Equal(t, models.StatusCompleted, docs[0].Status)

		require.NoError(t, st.Delete(ctx, doc.ID))
		assert.Empty(t, d.wait(t))
	})

	t.Run("should not deliver after Cancel returns", func(t *testing.T) {
		st := store.NewMemoryStore()
		feed, err := NewStatusFeed(st, nil)
		require.NoError(t, err)
		d := newDeliveries()
		sub, err := feed.Activate(ctx, d.deliver)
		require.NoError(t, err)
		d.wait(t)

		sub.Cancel()
		sub.Cancel()
		before := d.count()

		for i := 0; i < 5; i++ {
			_, err := st.Create(ctx, &models.Document{OriginalFilename: "x.pdf", FilePath: string(rune('a'+i)) + ".pdf"})
			require.NoError(t, err)
		}
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, before, d.count())

		select {
		case <-sub.Done():
		default:
			t.Fatal("Done should be closed after Cancel")
		}
	})

	t.Run("should stop when the activation context ends", func(t *testing.T) {
		st := store.NewMemoryStore()
		feed, err := NewStatusFeed(st, nil)
		require.NoError(t, err)

		actx, cancel := context.WithCancel(ctx)
		sub, err := feed.Activate(actx, func([]*models.Document) {})
		require.NoError(t, err)
		cancel()

		select {
		case <-sub.Done():
		case <-time.After(time.Second):
			t.Fatal("subscription did not stop")
		}
	})

	t.Run("should fail activation when the initial fetch fails", func(t *testing.T) {
		feed, err := NewStatusFeed(brokenSource{}, nil)
		require.NoError(t, err)

		_, err = feed.Activate(ctx, func([]*models.Document) {
			t.Fatal("deliver must not be called")
		})
		assert.ErrorContains(t, err, "failed to fetch documents")
	})
}

type brokenSource struct{}

func (brokenSource) List(ctx context.Context) ([]*models.Document, error) {
	return nil, errors.New("connection refused")
}

func (brokenSource) Watch(ctx context.Context) (<-chan store.ChangeEvent, error) {
	return make(chan store.ChangeEvent), nil
}
