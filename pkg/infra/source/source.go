// Package source opens annotation, workflow and report files from local
// paths or Cloud Storage. Files ending in .gz are decompressed on read.
package source

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

const gsScheme = "gs://"

// Store implements interfaces.FileStore
type Store struct {
	objects interfaces.ObjectStore
	root    string
}

// Option configures a Store
type Option func(*Store)

// WithObjectStore enables gs:// paths
func WithObjectStore(objects interfaces.ObjectStore) Option {
	return func(s *Store) {
		s.objects = objects
	}
}

// WithRoot resolves relative paths under root. Root may itself be a
// gs://bucket/prefix URL.
func WithRoot(root string) Option {
	return func(s *Store) {
		s.root = root
	}
}

// New creates a Store
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sub returns a Store sharing the object store with relative paths resolved
// under dir.
func (s *Store) Sub(dir string) *Store {
	return &Store{objects: s.objects, root: s.resolve(dir)}
}

// ParseObjectURL splits gs://bucket/object
func ParseObjectURL(u string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(u, gsScheme)
	if !found {
		return "", "", false
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}

func (s *Store) resolve(p string) string {
	if s.root == "" || p == "-" || strings.HasPrefix(p, gsScheme) || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(s.root, gsScheme) {
		return gsScheme + path.Join(strings.TrimPrefix(s.root, gsScheme), p)
	}
	return filepath.Join(s.root, p)
}

// Open opens a file. "-" reads standard input.
func (s *Store) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	resolved := s.resolve(p)

	var rc io.ReadCloser
	switch {
	case resolved == "-":
		rc = io.NopCloser(os.Stdin)

	case strings.HasPrefix(resolved, gsScheme):
		bucket, object, ok := ParseObjectURL(resolved)
		if !ok {
			return nil, goerr.New("malformed object URL",
				goerr.V("path", resolved),
				goerr.T(types.ErrTagInvalidArgument))
		}
		if s.objects == nil {
			return nil, goerr.New("object storage is not configured",
				goerr.V("path", resolved),
				goerr.T(types.ErrTagUnsupported))
		}
		r, err := s.objects.NewReader(ctx, bucket, object)
		if err != nil {
			return nil, err
		}
		rc = r

	default:
		f, err := os.Open(filepath.Clean(resolved))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, goerr.Wrap(err, "file not found",
					goerr.V("path", resolved),
					goerr.T(types.ErrTagNotFound))
			}
			return nil, goerr.Wrap(err, "failed to open file", goerr.V("path", resolved))
		}
		rc = f
	}

	if !strings.HasSuffix(resolved, ".gz") {
		return rc, nil
	}

	zr, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, goerr.Wrap(err, "failed to read gzip header",
			goerr.V("path", resolved),
			goerr.T(types.ErrTagParse))
	}
	return &gzipReadCloser{Reader: zr, src: rc}, nil
}

// Exists reports whether a file exists
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	resolved := s.resolve(p)

	if strings.HasPrefix(resolved, gsScheme) {
		bucket, object, ok := ParseObjectURL(resolved)
		if !ok {
			return false, goerr.New("malformed object URL",
				goerr.V("path", resolved),
				goerr.T(types.ErrTagInvalidArgument))
		}
		if s.objects == nil {
			return false, goerr.New("object storage is not configured",
				goerr.V("path", resolved),
				goerr.T(types.ErrTagUnsupported))
		}
		return s.objects.Exists(ctx, bucket, object)
	}

	info, err := os.Stat(filepath.Clean(resolved))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to stat file", goerr.V("path", resolved))
	}
	return !info.IsDir(), nil
}

type gzipReadCloser struct {
	*gzip.Reader
	src io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	return errors.Join(g.Reader.Close(), g.src.Close())
}
