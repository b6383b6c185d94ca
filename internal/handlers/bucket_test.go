package handlers

import (
	"context"
	"errors"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/services"
)

func gcsCloudEvent(t *testing.T, data models.GCSEvent) cloudevents.Event {
	t.Helper()
	e := cloudevents.NewEvent()
	e.SetID("evt-1")
	e.SetSource("//storage.googleapis.com/projects/_/buckets/" + data.Bucket)
	e.SetType("google.cloud.storage.object.v1.finalized")
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, data))
	return e
}

func TestBucketIngestHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("should admit and process an inbox object", func(t *testing.T) {
		reader := &MockObjectReader{}
		ingestor := &MockIngestor{}
		data := []byte("%PDF-1.4")
		doc := &models.Document{ID: "doc-1", FilePath: "k.pdf"}

		reader.On("ReadObject", mock.Anything, "inbox", "scans/2024/complaint.pdf").Return(data, nil).Once()
		ingestor.On("Admit", mock.Anything, services.Upload{
			Filename:    "complaint.pdf",
			ContentType: "application/pdf",
			Data:        data,
		}).Return(doc, nil).Once()
		ingestor.On("Process", mock.Anything, doc, data).Return(nil).Once()

		h := NewBucketIngestHandler(reader, ingestor, "documents", 1<<20, nil)
		err := h.HandleEvent(ctx, gcsCloudEvent(t, models.GCSEvent{
			Bucket: "inbox", Name: "scans/2024/complaint.pdf", ContentType: "application/pdf", Size: "8",
		}))

		require.NoError(t, err)
		reader.AssertExpectations(t)
		ingestor.AssertExpectations(t)
	})

	t.Run("should not ask for redelivery when processing fails", func(t *testing.T) {
		reader := &MockObjectReader{}
		ingestor := &MockIngestor{}
		doc := &models.Document{ID: "doc-2"}
		reader.On("ReadObject", mock.Anything, "inbox", "a.txt").Return([]byte("x"), nil)
		ingestor.On("Admit", mock.Anything, mock.Anything).Return(doc, nil)
		ingestor.On("Process", mock.Anything, doc, mock.Anything).Return(errors.New("failed to extract text"))

		h := NewBucketIngestHandler(reader, ingestor, "documents", 0, nil)
		assert.NoError(t, h.HandleEvent(ctx, gcsCloudEvent(t, models.GCSEvent{Bucket: "inbox", Name: "a.txt"})))
	})

	t.Run("should return read failures for redelivery", func(t *testing.T) {
		reader := &MockObjectReader{}
		ingestor := &MockIngestor{}
		reader.On("ReadObject", mock.Anything, "inbox", "a.txt").Return(nil, errors.New("permission denied"))

		h := NewBucketIngestHandler(reader, ingestor, "documents", 0, nil)
		err := h.HandleEvent(ctx, gcsCloudEvent(t, models.GCSEvent{Bucket: "inbox", Name: "a.txt"}))

		assert.ErrorContains(t, err, "permission denied")
		ingestor.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything)
	})

	ignored := []struct {
		name  string
		event models.GCSEvent
	}{
		{"objects in the documents bucket", models.GCSEvent{Bucket: "documents", Name: "k.pdf"}},
		{"folder placeholders", models.GCSEvent{Bucket: "inbox", Name: "scans/"}},
		{"events without a name", models.GCSEvent{Bucket: "inbox"}},
		{"oversized objects", models.GCSEvent{Bucket: "inbox", Name: "big.pdf", Size: "2048"}},
	}
	for _, tc := range ignored {
		t.Run("should ignore "+tc.name, func(t *testing.T) {
			reader := &MockObjectReader{}
			ingestor := &MockIngestor{}
			h := NewBucketIngestHandler(reader, ingestor, "documents", 1024, nil)

			assert.NoError(t, h.HandleEvent(ctx, gcsCloudEvent(t, tc.event)))
			reader.AssertNotCalled(t, "ReadObject", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("should reject malformed event data", func(t *testing.T) {
		e := cloudevents.NewEvent()
		e.SetID("evt-2")
		e.SetSource("test")
		e.SetType("google.cloud.storage.object.v1.finalized")
		require.NoError(t, e.SetData(cloudevents.TextPlain, "not json"))

		h := NewBucketIngestHandler(&MockObjectReader{}, &MockIngestor{}, "documents", 0, nil)
		assert.Error(t, h.HandleEvent(ctx, e))
	})
}
