package interfaces

import (
	"context"
	"io"
)

// FileStore opens files by path. Implementations resolve local paths,
// gzip-compressed files and object storage URLs.
type FileStore interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ObjectStore reads objects from a bucket
type ObjectStore interface {
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Exists(ctx context.Context, bucket, object string) (bool, error)
}
