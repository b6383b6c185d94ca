package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/legaldocflow/internal/gcp"
)

// GCSStore keeps blobs in a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

func NewGCSStore(client *storage.Client, bucket string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := gcp.SaveToGCSAtomically(ctx, s.client.Bucket(s.bucket), key, contentType, data)
	if errors.Is(err, gcp.ErrObjectExists) {
		slog.Warn("Object already exists, refusing to overwrite.", "gcsBucket", s.bucket, "gcsObject", key)
		return fmt.Errorf("%w: gs://%s/%s", ErrExists, s.bucket, key)
	}
	return err
}

func (s *GCSStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := gcp.ReadGCSObject(ctx, s.client.Bucket(s.bucket), key)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrNotFound, s.bucket, key)
	}
	return data, err
}

func (s *GCSStore) PublicURL(key string) string {
	return gcp.PublicObjectURL(s.bucket, key)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
