package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKey is returned for keys that could escape the store's namespace.
	ErrInvalidKey = errors.New("invalid blob key")
	// ErrNotFound is returned by Fetch when nothing is stored under the key.
	ErrNotFound = errors.New("blob not found")
	// ErrExists is returned by Upload when the key is already taken.
	ErrExists = errors.New("blob already exists")
)

// Store is the Blob Store documents are persisted to.
type Store interface {
	// Upload stores data under key. It never overwrites an existing blob.
	Upload(ctx context.Context, key, contentType string, data []byte) error
	Fetch(ctx context.Context, key string) ([]byte, error)
	// PublicURL resolves the address clients download the blob from.
	PublicURL(key string) string
	Close() error
}

// ValidateKey accepts flat keys only: no path separators and no dot segments.
func ValidateKey(key string) error {
	switch {
	case key == "", key == ".", key == "..":
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	case strings.ContainsAny(key, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKey, key)
	case strings.ContainsRune(key, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidKey, key)
	}
	return nil
}
