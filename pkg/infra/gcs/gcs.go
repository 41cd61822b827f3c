package gcs

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

// Client reads annotation files from Cloud Storage
type Client struct {
	client *storage.Client
}

// New creates a Cloud Storage client with application default credentials
// unless other options are given.
func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
	}
	return &Client{client: client}, nil
}

// NewReader opens an object for reading
func (c *Client) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, goerr.Wrap(err, "object not found",
				goerr.V("bucket", bucket),
				goerr.V("object", object),
				goerr.T(types.ErrTagNotFound))
		}
		return nil, goerr.Wrap(err, "failed to open object",
			goerr.V("bucket", bucket),
			goerr.V("object", object))
	}
	return r, nil
}

// Exists reports whether the object exists
func (c *Client) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := c.client.Bucket(bucket).Object(object).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, goerr.Wrap(err, "failed to get object attributes",
			goerr.V("bucket", bucket),
			goerr.V("object", object))
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}
