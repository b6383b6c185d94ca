package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

// Sweeper fails records stuck in processing for longer than staleAfter, which
// happens when a background task dies or its failure update is lost.
type Sweeper struct {
	store      store.Store
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewSweeper(st store.Store, staleAfter time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if st == nil {
		return nil, ErrStoreRequired
	}
	if staleAfter <= 0 {
		return nil, fmt.Errorf("staleAfter must be positive, got %s", staleAfter)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:      st,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}, nil
}

// SweepOnce fails every stale processing record and returns how many it failed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.staleAfter)
	stale, err := s.store.ListByStatus(ctx, models.StatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale documents: %w", err)
	}

	failed := 0
	for _, doc := range stale {
		err := s.store.Fail(ctx, doc.ID, now)
		switch {
		case err == nil:
			failed++
			s.logger.Warn("Failed stale document.", "documentId", doc.ID, "filePath", doc.FilePath, "createdAt", doc.CreatedAt)
		case errors.Is(err, store.ErrAlreadyFinalized), errors.Is(err, store.ErrNotFound):
			// Finished or removed since the listing.
		default:
			s.logger.Error("Failed to fail stale document", "documentId", doc.ID, "error", err)
		}
	}
	if failed > 0 {
		s.logger.Info("Stale document sweep complete.", "failedCount", failed, "cutoff", cutoff)
	}
	return failed, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Stale document sweep failed", "error", err)
			}
		}
	}
}
