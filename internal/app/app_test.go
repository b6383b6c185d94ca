package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldocflow/internal/config"
	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/services"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		RecordBackend:     config.BackendMemory,
		BlobBackend:       config.BlobLocal,
		LocalBlobDir:      t.TempDir(),
		PublicBaseURL:     "http://files.test",
		DocumentsBucket:   "documents",
		WorkerPoolSize:    2,
		ProcessingTimeout: time.Minute,
		StaleAfter:        time.Hour,
		SweepInterval:     time.Minute,
		MaxUploadBytes:    1 << 20,
	}
}

func TestNew_LocalBackends(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := New(context.Background(), localConfig(t), nil)
	require.NoError(t, err)

	assert.IsType(t, &store.MemoryStore{}, a.Store)
	assert.Nil(t, a.Verifier)

	h := a.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/process-document", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	doc, err := a.Ingestion.Submit(context.Background(), services.Upload{
		Filename:    "memo.txt",
		ContentType: "text/plain",
		Data:        []byte("MEMORANDUM OF LAW"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	got, err := a.Store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, "MEMORANDUM OF LAW", got.ProcessedData.Content)
}

func TestNew_RoutesDocumentsAndSweep(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := New(context.Background(), localConfig(t), nil)
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	_, err = a.Store.Create(context.Background(), &models.Document{OriginalFilename: "a.pdf", FilePath: "a.pdf"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	assert.Len(t, docs, 1)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweep", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"failedCount":0}`, rec.Body.String())
}

func TestNew_EnablesAuthWithSecret(t *testing.T) {
	cfg := localConfig(t)
	cfg.JWTSecret = "secret"
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	require.NotNil(t, a.Verifier)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	cfg := localConfig(t)
	cfg.RecordBackend = "mongo"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown RECORD_BACKEND")
}
