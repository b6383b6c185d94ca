package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

// FeedSource is the read side of the Record Store the Status Feed needs.
type FeedSource interface {
	List(ctx context.Context) ([]*models.Document, error)
	Watch(ctx context.Context) (<-chan store.ChangeEvent, error)
}

// StatusFeed keeps a consumer supplied with the full, newest-first list of
// documents. Any change event triggers a full re-fetch.
type StatusFeed struct {
	source FeedSource
	logger *slog.Logger
}

func NewStatusFeed(source FeedSource, logger *slog.Logger) (*StatusFeed, error) {
	if source == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusFeed{source: source, logger: logger}, nil
}

// Subscription is an active Status Feed.
type Subscription struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// Cancel ends the subscription and returns once the delivery goroutine has
// exited, so no callback runs after Cancel returns. It must not be called
// from inside the deliver callback, which would deadlock.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.cancel()
	})
	<-s.done
}

// Done is closed when the subscription has stopped delivering.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Activate subscribes to changes, delivers the current list, then redelivers
// the list after every change until ctx ends or Cancel is called. Deliveries
// happen on a single goroutine, one at a time.
func (f *StatusFeed) Activate(ctx context.Context, deliver func([]*models.Document)) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	events, err := f.source.Watch(subCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to document changes: %w", err)
	}

	docs, err := f.source.List(subCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}

	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	deliver(docs)

	go func() {
		defer close(sub.done)
		defer cancel()
		for {
			select {
			case <-subCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					if subCtx.Err() == nil {
						f.logger.Warn("Document change stream ended.")
					}
					return
				}
				if sub.stopped.Load() {
					return
				}
				docs, err := f.source.List(subCtx)
				if err != nil {
					if subCtx.Err() == nil {
						f.logger.Error("Failed to re-fetch documents after change", "op", ev.Op, "documentId", ev.DocumentID, "error", err)
					}
					continue
				}
				if sub.stopped.Load() || subCtx.Err() != nil {
					return
				}
				deliver(docs)
			}
		}
	}()
	return sub, nil
}
