package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/metrics"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

type dataset struct {
	info model.DatasetInfo
	db   interfaces.AnnotationDB

	// inflight counts queries that looked the dataset up and still use db.
	// It is only incremented under Annotation.mu.
	inflight sync.WaitGroup
}

func (ds *dataset) release() {
	ds.inflight.Done()
}

// close waits for in-flight queries before closing the database
func (ds *dataset) close() error {
	ds.inflight.Wait()
	return ds.db.Close()
}

// Annotation loads annotation datasets and serves queries over them
type Annotation struct {
	files   interfaces.FileStore
	newDB   interfaces.AnnotationDBFactory
	metrics *metrics.Metrics

	mu       sync.RWMutex
	datasets map[string]*dataset
}

var _ interfaces.AnnotationUseCase = (*Annotation)(nil)

// AnnotationOption configures Annotation
type AnnotationOption func(*Annotation)

// WithAnnotationMetrics records loads and queries
func WithAnnotationMetrics(m *metrics.Metrics) AnnotationOption {
	return func(a *Annotation) {
		a.metrics = m
	}
}

// NewAnnotation creates the annotation use case. files resolves dataset
// paths and newDB opens the database a dataset is loaded into.
func NewAnnotation(files interfaces.FileStore, newDB interfaces.AnnotationDBFactory, opts ...AnnotationOption) *Annotation {
	a := &Annotation{
		files:    files,
		newDB:    newDB,
		datasets: map[string]*dataset{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load parses a dataset into a new database and registers it under the
// dataset name, replacing a dataset loaded earlier with the same name. The
// replaced database is closed once the queries already running on it
// return.
func (a *Annotation) Load(ctx context.Context, ds model.Dataset) (*model.DatasetInfo, error) {
	ds, err := ds.Normalize()
	if err != nil {
		return nil, err
	}

	loadID := uuid.NewString()
	logger := ctxlog.From(ctx).With("load_id", loadID, "dataset", ds.Name)
	start := time.Now()

	db, err := a.newDB(ctx, ds.Format, ds.DB)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open annotation database",
			goerr.V("dataset", ds.Name),
			goerr.V("db", ds.DB))
	}

	info := model.DatasetInfo{
		Name:     ds.Name,
		Format:   ds.Format,
		Path:     ds.Path,
		DB:       ds.DB,
		LoadID:   loadID,
		LoadedAt: start,
	}

	if ds.Path != "" {
		n, err := a.populate(ctx, db, ds.Path)
		if err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to load dataset",
				goerr.V("dataset", ds.Name),
				goerr.V("path", ds.Path))
		}
		info.Rows = n
		a.metrics.RecordsLoaded(ds.Name, string(ds.Format), n)
	} else {
		n, err := db.Size(ctx)
		if err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to attach database", goerr.V("dataset", ds.Name))
		}
		info.Rows = n
	}

	a.mu.Lock()
	prev := a.datasets[ds.Name]
	a.datasets[ds.Name] = &dataset{info: info, db: db}
	count := len(a.datasets)
	a.mu.Unlock()
	a.metrics.SetDatasets(count)

	if prev != nil {
		if err := prev.close(); err != nil {
			logger.Warn("failed to close replaced dataset", "error", err)
		}
	}

	logger.Info("dataset loaded",
		"format", ds.Format,
		"path", ds.Path,
		"rows", info.Rows,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &info, nil
}

func (a *Annotation) populate(ctx context.Context, db interfaces.AnnotationDB, path string) (int, error) {
	r, err := a.files.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return db.Populate(ctx, r)
}

// Datasets lists the loaded datasets sorted by name
func (a *Annotation) Datasets() []model.DatasetInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	infos := make([]model.DatasetInfo, 0, len(a.datasets))
	for _, ds := range a.datasets {
		infos = append(infos, ds.info)
	}
	slices.SortFunc(infos, func(x, y model.DatasetInfo) int {
		return strings.Compare(x.Name, y.Name)
	})
	return infos
}

// lookup resolves a dataset and marks it in use. Callers must release it.
func (a *Annotation) lookup(name string) (*dataset, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if name == "" {
		switch len(a.datasets) {
		case 0:
			return nil, goerr.New("no dataset is loaded", goerr.T(types.ErrTagNotFound))
		case 1:
			for _, ds := range a.datasets {
				ds.inflight.Add(1)
				return ds, nil
			}
		default:
			return nil, goerr.New("dataset name is required when several datasets are loaded",
				goerr.V("datasets", len(a.datasets)),
				goerr.T(types.ErrTagInvalidArgument))
		}
	}

	ds, ok := a.datasets[name]
	if !ok {
		return nil, goerr.New("dataset not found",
			goerr.V("dataset", name),
			goerr.T(types.ErrTagNotFound))
	}
	ds.inflight.Add(1)
	return ds, nil
}

// FindRecords returns the features of a dataset matching q
func (a *Annotation) FindRecords(ctx context.Context, name string, q model.Query) ([]model.Record, error) {
	ds, err := a.lookup(name)
	if err != nil {
		return nil, err
	}
	defer ds.release()

	records, err := ds.db.FindRecords(ctx, q)
	a.metrics.Query(ds.info.Name, "find", err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find records", goerr.V("dataset", ds.info.Name))
	}
	return records, nil
}

// Describe returns the distinct values of a dataset
func (a *Annotation) Describe(ctx context.Context, name string, q model.DescribeQuery) (map[string][]string, error) {
	ds, err := a.lookup(name)
	if err != nil {
		return nil, err
	}
	defer ds.release()

	result, err := ds.db.Describe(ctx, q)
	a.metrics.Query(ds.info.Name, "describe", err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to describe dataset", goerr.V("dataset", ds.info.Name))
	}
	return result, nil
}

// Count returns the number of rows of a dataset matching q
func (a *Annotation) Count(ctx context.Context, name string, q model.Query) (int, error) {
	ds, err := a.lookup(name)
	if err != nil {
		return 0, err
	}
	defer ds.release()

	n, err := ds.db.Count(ctx, q)
	a.metrics.Query(ds.info.Name, "count", err)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count rows", goerr.V("dataset", ds.info.Name))
	}
	return n, nil
}

// Close closes every loaded database after its in-flight queries return
func (a *Annotation) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for name, ds := range a.datasets {
		if err := ds.close(); err != nil {
			errs = append(errs, goerr.Wrap(err, "failed to close dataset", goerr.V("dataset", name)))
		}
	}
	a.datasets = map[string]*dataset{}
	a.metrics.SetDatasets(0)
	return errors.Join(errs...)
}
