package model

import (
	"path"
	"strings"
	"time"

	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Dataset names an annotation source to load. Path may be a local file, a
// gzip file or a gs:// object. DB is the SQLite file to load into; empty
// means an in-memory database. A dataset with a DB and no Path attaches to a
// database populated earlier.
type Dataset struct {
	Name   string           `toml:"name" json:"name"`
	Path   string           `toml:"path" json:"path,omitempty"`
	Format AnnotationFormat `toml:"format" json:"format"`
	DB     string           `toml:"db" json:"db,omitempty"`
}

// Normalize fills the name and format from the path when they are not set.
func (d Dataset) Normalize() (Dataset, error) {
	if d.Path == "" && d.DB == "" {
		return d, goerr.New("dataset needs a path or a db",
			goerr.V("name", d.Name),
			goerr.T(types.ErrTagInvalidArgument))
	}

	if d.Format == "" {
		if d.Path == "" {
			return d, goerr.New("format is required when attaching a database",
				goerr.V("name", d.Name),
				goerr.V("db", d.DB),
				goerr.T(types.ErrTagInvalidArgument))
		}
		format, err := ParseAnnotationFormat(d.Path)
		if err != nil {
			return d, goerr.Wrap(err, "cannot infer dataset format", goerr.V("name", d.Name))
		}
		d.Format = format
	} else {
		format, err := ParseAnnotationFormat(string(d.Format))
		if err != nil {
			return d, err
		}
		d.Format = format
	}

	if d.Name == "" {
		src := d.Path
		if src == "" {
			src = d.DB
		}
		d.Name = datasetName(src)
	}
	return d, nil
}

func datasetName(p string) string {
	base := path.Base(strings.TrimPrefix(p, "gs://"))
	base = strings.TrimSuffix(base, ".gz")
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// DatasetInfo describes a loaded dataset
type DatasetInfo struct {
	Name     string           `json:"name"`
	Format   AnnotationFormat `json:"format"`
	Path     string           `json:"path,omitempty"`
	DB       string           `json:"db,omitempty"`
	Rows     int              `json:"rows"`
	LoadID   string           `json:"load_id"`
	LoadedAt time.Time        `json:"loaded_at"`
}
