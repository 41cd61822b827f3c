package usecase

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// document is a parsed file that can be reloaded while readers hold the
// previous version.
type document[T any] struct {
	kind    string
	files   interfaces.FileStore
	path    string
	parse   func(io.Reader) (*T, error)
	current atomic.Pointer[T]
}

func (d *document[T]) load(ctx context.Context) error {
	if d.path == "" {
		return goerr.New(d.kind+" path is not configured", goerr.T(types.ErrTagInvalidArgument))
	}

	r, err := d.files.Open(ctx, d.path)
	if err != nil {
		return goerr.Wrap(err, "failed to open "+d.kind, goerr.V("path", d.path))
	}
	defer r.Close()

	doc, err := d.parse(r)
	if err != nil {
		return goerr.Wrap(err, "failed to parse "+d.kind, goerr.V("path", d.path))
	}

	d.current.Store(doc)
	ctxlog.From(ctx).Info(d.kind+" loaded", "path", d.path)
	return nil
}

func (d *document[T]) get() (*T, error) {
	doc := d.current.Load()
	if doc == nil {
		return nil, goerr.New(d.kind+" is not loaded", goerr.T(types.ErrTagNotFound))
	}
	return doc, nil
}
