package source_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/infra/source"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type mockObjectStore struct {
	newReaderFunc func(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	existsFunc    func(ctx context.Context, bucket, object string) (bool, error)
}

func (m *mockObjectStore) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return m.newReaderFunc(ctx, bucket, object)
}

func (m *mockObjectStore) Exists(ctx context.Context, bucket, object string) (bool, error) {
	return m.existsFunc(ctx, bucket, object)
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	gt.NoError(t, err)
	return string(data)
}

func TestStore_OpenLocal(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "a.gff"), []byte("plain"), 0o600))

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("compressed"))
	gt.NoError(t, err)
	gt.NoError(t, zw.Close())
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "b.gff.gz"), buf.Bytes(), 0o600))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "broken.gz"), []byte("not gzip"), 0o600))

	ctx := context.Background()
	store := source.New()

	rc, err := store.Open(ctx, filepath.Join(dir, "a.gff"))
	gt.NoError(t, err).Required()
	gt.Value(t, readAll(t, rc)).Equal("plain")

	rc, err = store.Open(ctx, filepath.Join(dir, "b.gff.gz"))
	gt.NoError(t, err).Required()
	gt.Value(t, readAll(t, rc)).Equal("compressed")

	_, err = store.Open(ctx, filepath.Join(dir, "missing.gff"))
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagNotFound))

	_, err = store.Open(ctx, filepath.Join(dir, "broken.gz"))
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagParse))
}

func TestStore_SubAndExists(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "junit-3.8.xml"), []byte("<testsuites/>"), 0o600))
	gt.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	ctx := context.Background()
	store := source.New().Sub(dir)

	ok, err := store.Exists(ctx, "./junit-3.8.xml")
	gt.NoError(t, err)
	gt.True(t, ok)

	ok, err = store.Exists(ctx, "junit-3.9.xml")
	gt.NoError(t, err)
	gt.False(t, ok)

	ok, err = store.Exists(ctx, "nested")
	gt.NoError(t, err)
	gt.False(t, ok)

	rc, err := store.Open(ctx, "junit-3.8.xml")
	gt.NoError(t, err).Required()
	gt.Value(t, readAll(t, rc)).Equal("<testsuites/>")
}

func TestStore_ObjectStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		_, err := source.New().Open(ctx, "gs://bucket/a.gff")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagUnsupported))
	})

	var opened []string
	objects := &mockObjectStore{
		newReaderFunc: func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
			opened = append(opened, bucket+"|"+object)
			return io.NopCloser(strings.NewReader("object data")), nil
		},
		existsFunc: func(ctx context.Context, bucket, object string) (bool, error) {
			return object == "reports/junit-3.10.xml", nil
		},
	}
	store := source.New(source.WithObjectStore(objects))

	rc, err := store.Open(ctx, "gs://annotations/ecoli/NC_000913.gb")
	gt.NoError(t, err).Required()
	gt.Value(t, readAll(t, rc)).Equal("object data")
	gt.A(t, opened).Equal([]string{"annotations|ecoli/NC_000913.gb"})

	reports := store.Sub("gs://ci-artifacts/reports")
	ok, err := reports.Exists(ctx, "./junit-3.10.xml")
	gt.NoError(t, err)
	gt.True(t, ok)

	_, err = store.Open(ctx, "gs://bucket-only")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagInvalidArgument))
}

func TestParseObjectURL(t *testing.T) {
	tests := []struct {
		in     string
		bucket string
		object string
		ok     bool
	}{
		{in: "gs://b/o", bucket: "b", object: "o", ok: true},
		{in: "gs://b/dir/o.gz", bucket: "b", object: "dir/o.gz", ok: true},
		{in: "gs://b", ok: false},
		{in: "gs:///o", ok: false},
		{in: "/local/path", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, object, ok := source.ParseObjectURL(tt.in)
			gt.Value(t, ok).Equal(tt.ok)
			gt.Value(t, bucket).Equal(tt.bucket)
			gt.Value(t, object).Equal(tt.object)
		})
	}
}
