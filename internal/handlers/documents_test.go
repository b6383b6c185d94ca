package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/services"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

func newDocumentsTestRouter(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore()
	feed, err := services.NewStatusFeed(st, nil)
	require.NoError(t, err)
	return NewDocumentsRouter(st, feed, nil, nil), st
}

func TestDocumentsRouter_List(t *testing.T) {
	r, st := newDocumentsTestRouter(t)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	first, err := st.Create(ctx, &models.Document{OriginalFilename: "a.pdf", FilePath: "a.pdf", ContentType: "application/pdf"})
	require.NoError(t, err)
	second, err := st.Create(ctx, &models.Document{OriginalFilename: "b.txt", FilePath: "b.txt", ContentType: "text/plain"})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)

	var docs []models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, second.ID, docs[0].ID)
	assert.Equal(t, first.ID, docs[1].ID)
	assert.Equal(t, models.StatusProcessing, docs[0].Status)
	assert.Nil(t, docs[0].UpdatedAt)
}

func TestDocumentsRouter_Get(t *testing.T) {
	r, st := newDocumentsTestRouter(t)
	doc, err := st.Create(context.Background(), &models.Document{OriginalFilename: "a.pdf", FilePath: "a.pdf"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "a.pdf", got.FilePath)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Document not found"}`, rec.Body.String())
}

type failingReader struct{}

func (failingReader) List(ctx context.Context) ([]*models.Document, error) {
	return nil, errors.New("deadline exceeded")
}

func (failingReader) Get(ctx context.Context, id string) (*models.Document, error) {
	return nil, errors.New("deadline exceeded")
}

func TestDocumentsRouter_StoreErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewDocumentsRouter(failingReader{}, nil, nil, nil)

	for _, path := range []string{"/documents", "/documents/abc"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.JSONEq(t, `{"error":"deadline exceeded"}`, rec.Body.String(), path)
	}
}

func TestDocumentsRouter_Preflight(t *testing.T) {
	r, _ := newDocumentsTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/documents", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)
}

// readEvent returns the data of the next SSE event named name.
func readEvent(t *testing.T, sc *bufio.Scanner, name string) string {
	t.Helper()
	var event string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && event == name:
			return strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	t.Fatalf("stream ended before a %q event: %v", name, sc.Err())
	return ""
}

func TestDocumentsRouter_Stream(t *testing.T) {
	r, st := newDocumentsTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/documents/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	assert.JSONEq(t, `[]`, readEvent(t, sc, "documents"))

	doc, err := st.Create(context.Background(), &models.Document{OriginalFilename: "motion.pdf", FilePath: "m.pdf"})
	require.NoError(t, err)

	var docs []models.Document
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, sc, "documents")), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
	assert.Equal(t, models.StatusProcessing, docs[0].Status)

	require.NoError(t, st.Complete(context.Background(), doc.ID, &models.ProcessedData{Content: "text"}, time.Now()))
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, sc, "documents")), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, models.StatusCompleted, docs[0].Status)
	require.NotNil(t, docs[0].ProcessedData)
	assert.Equal(t, "text", docs[0].ProcessedData.Content)
}
