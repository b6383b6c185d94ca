package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/services"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

type sweepFunc func(ctx context.Context) (int, error)

func (f sweepFunc) SweepOnce(ctx context.Context) (int, error) { return f(ctx) }

func TestSweepHandler(t *testing.T) {
	t.Run("should report how many records were failed", func(t *testing.T) {
		st := store.NewMemoryStore()
		doc, err := st.Create(context.Background(), &models.Document{OriginalFilename: "a.pdf", FilePath: "a.pdf"})
		require.NoError(t, err)
		sweeper, err := services.NewSweeper(st, time.Nanosecond, nil)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)

		rec := httptest.NewRecorder()
		NewSweepHandler(sweeper, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweep", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"failedCount":1}`, rec.Body.String())
		got, err := st.Get(context.Background(), doc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, got.Status)
	})

	t.Run("should return 500 when the sweep fails", func(t *testing.T) {
		h := NewSweepHandler(sweepFunc(func(context.Context) (int, error) {
			return 0, errors.New("failed to list stale documents: unavailable")
		}), nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweep", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"failed to list stale documents: unavailable"}`, rec.Body.String())
	})

	t.Run("should reject other methods", func(t *testing.T) {
		h := NewSweepHandler(sweepFunc(func(context.Context) (int, error) { return 0, nil }), nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sweep", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
