// Package notify hands finalized documents to downstream consumers.
package notify

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/legaldocflow/internal/models"
)

// Notifier is told about every document that reached a terminal status.
type Notifier interface {
	DocumentFinalized(ctx context.Context, doc *models.Document) error
}

// Multi fans a notification out to several notifiers concurrently.
type Multi []Notifier

func (m Multi) DocumentFinalized(ctx context.Context, doc *models.Document) error {
	var eg errgroup.Group
	for _, n := range m {
		eg.Go(func() error {
			return n.DocumentFinalized(ctx, doc)
		})
	}
	return eg.Wait()
}
