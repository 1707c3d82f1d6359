package model

import (
	"context"
	"io"
)

// ObjectStorage keeps archived blobs outside the database.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}
