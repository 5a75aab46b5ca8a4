package storage

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrObjectNotFound is returned by Get when the key holds no object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the bucket the raw page archive writes to. Pages are
// small HTML documents, so bodies move as byte slices.
type ObjectStorage interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns the address an operator can open the object at.
	URL(key string) string

	// EnsureBucket creates the bucket when it is missing.
	EnsureBucket(ctx context.Context) error
}
