package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/services"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, up services.Upload) (*models.Document, error) {
	args := m.Called(ctx, up)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) Admit(ctx context.Context, up services.Upload) (*models.Document, error) {
	args := m.Called(ctx, up)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

func (m *MockIngestor) Process(ctx context.Context, doc *models.Document, data []byte) error {
	return m.Called(ctx, doc, data).Error(0)
}

type MockObjectReader struct {
	mock.Mock
}

func (m *MockObjectReader) ReadObject(ctx context.Context, bucket, name string) ([]byte, error) {
	args := m.Called(ctx, bucket, name)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// multipartRequest builds a POST with one form field holding a file.
func multipartRequest(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
		if contentType != "" {
			h["Content-Type"] = []string{contentType}
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process-document", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
