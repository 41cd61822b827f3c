package config

import (
	"context"
	"os"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/infra/gcs"
	"github.com/m-mizutani/annodb/pkg/infra/source"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// Database holds the annotation datasets to load
type Database struct {
	GFF            []string
	GenBank        []string
	Manifest       string
	DB             string
	Format         string
	GCSCredentials string
}

// manifest is the TOML dataset list given by --datasets
type manifest struct {
	Datasets []model.Dataset `toml:"dataset"`
}

// Flags returns CLI flags for annotation datasets
func (c *Database) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "gff",
			Usage:       "GFF/GTF annotation file (local, .gz or gs://)",
			Destination: &c.GFF,
			Sources:     cli.EnvVars("ANNODB_GFF"),
		},
		&cli.StringSliceFlag{
			Name:        "genbank",
			Usage:       "GenBank annotation file (local, .gz or gs://)",
			Destination: &c.GenBank,
			Sources:     cli.EnvVars("ANNODB_GENBANK"),
		},
		&cli.StringFlag{
			Name:        "datasets",
			Usage:       "TOML manifest listing [[dataset]] entries with name, path, format and db",
			Destination: &c.Manifest,
			Sources:     cli.EnvVars("ANNODB_DATASETS"),
		},
		&cli.StringFlag{
			Name:        "db",
			Usage:       "SQLite file for a single --gff/--genbank dataset (default: in-memory)",
			Destination: &c.DB,
			Sources:     cli.EnvVars("ANNODB_DB"),
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "Annotation format (gff, genbank) of a --db given without a file",
			Destination: &c.Format,
			Sources:     cli.EnvVars("ANNODB_FORMAT"),
		},
		&cli.StringFlag{
			Name:        "gcs-credentials",
			Usage:       "Service account key for gs:// paths (default: application default credentials)",
			Destination: &c.GCSCredentials,
			Sources:     cli.EnvVars("ANNODB_GCS_CREDENTIALS"),
		},
	}
}

// Datasets returns the datasets from flags followed by the manifest entries
func (c *Database) Datasets() ([]model.Dataset, error) {
	var datasets []model.Dataset
	for _, p := range c.GFF {
		datasets = append(datasets, model.Dataset{Path: p, Format: model.FormatGFF})
	}
	for _, p := range c.GenBank {
		datasets = append(datasets, model.Dataset{Path: p, Format: model.FormatGenBank})
	}

	if c.DB != "" {
		switch len(datasets) {
		case 0:
			if c.Format == "" {
				return nil, goerr.New("--db without --gff or --genbank needs --format",
					goerr.T(types.ErrTagInvalidArgument))
			}
			datasets = append(datasets, model.Dataset{DB: c.DB, Format: model.AnnotationFormat(c.Format)})
		case 1:
			datasets[0].DB = c.DB
		default:
			return nil, goerr.New("--db can only be used with a single dataset",
				goerr.V("datasets", len(datasets)),
				goerr.T(types.ErrTagInvalidArgument))
		}
	}

	if c.Manifest != "" {
		entries, err := loadManifest(c.Manifest)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, entries...)
	}
	return datasets, nil
}

func loadManifest(path string) ([]model.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read dataset manifest", goerr.V("path", path))
	}

	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, goerr.Wrap(err, "failed to decode dataset manifest",
			goerr.V("path", path),
			goerr.T(types.ErrTagParse))
	}
	if len(m.Datasets) == 0 {
		return nil, goerr.New("dataset manifest has no [[dataset]] entries",
			goerr.V("path", path),
			goerr.T(types.ErrTagInvalidArgument))
	}
	return m.Datasets, nil
}

// FileStore opens dataset files. A Cloud Storage client is created only
// when a path refers to gs://. The returned closer releases it.
func (c *Database) FileStore(ctx context.Context, paths ...string) (*source.Store, func(), error) {
	needGCS := false
	for _, p := range paths {
		if strings.HasPrefix(p, "gs://") {
			needGCS = true
			break
		}
	}
	if !needGCS {
		return source.New(), func() {}, nil
	}

	var opts []option.ClientOption
	if c.GCSCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(c.GCSCredentials))
	}
	client, err := gcs.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	closer := func() {
		if err := client.Close(); err != nil {
			ctxlog.From(ctx).Warn("failed to close storage client", "error", err)
		}
	}
	return source.New(source.WithObjectStore(client)), closer, nil
}

// Paths lists every dataset path
func Paths(datasets []model.Dataset) []string {
	paths := make([]string, 0, len(datasets))
	for _, d := range datasets {
		if d.Path != "" {
			paths = append(paths, d.Path)
		}
	}
	return paths
}
