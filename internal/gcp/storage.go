package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// ErrObjectExists is returned by SaveToGCSAtomically when the precondition
// rejected the write because the object is already there.
var ErrObjectExists = errors.New("object already exists")

// SaveToGCSAtomically writes data to a GCS object only if it doesn't already exist.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, data []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return ErrObjectExists
		}
		slog.Error("Failed to copy content to GCS object", "gcsObject", objectName, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	// Small uploads are buffered, so the precondition usually fails on Close.
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return ErrObjectExists
		}
		slog.Error("Failed to close GCS writer", "gcsObject", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// ReadGCSObject downloads the whole object into memory.
func ReadGCSObject(ctx context.Context, bucket *storage.BucketHandle, objectName string) ([]byte, error) {
	reader, err := bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", objectName, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", objectName, err)
	}
	return data, nil
}

// PublicObjectURL is the unauthenticated download address of an object in a public bucket.
func PublicObjectURL(bucket, objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectName)
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// BucketReader reads whole objects from any bucket the client can access.
type BucketReader struct {
	client *storage.Client
}

func NewBucketReader(client *storage.Client) *BucketReader {
	return &BucketReader{client: client}
}

func (r *BucketReader) ReadObject(ctx context.Context, bucket, name string) ([]byte, error) {
	return ReadGCSObject(ctx, r.client.Bucket(bucket), name)
}
