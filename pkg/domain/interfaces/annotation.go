package interfaces

import (
	"context"
	"io"

	"github.com/m-mizutani/annodb/pkg/domain/model"
)

// AnnotationDB stores the features of one annotation file and answers
// queries over them.
type AnnotationDB interface {
	// Format returns the annotation format the database holds
	Format() model.AnnotationFormat

	// Populate parses an annotation file and inserts its features. It
	// returns the number of rows inserted.
	Populate(ctx context.Context, r io.Reader) (int, error)

	// MakeSQLQuery builds the SELECT statement and arguments for a query
	MakeSQLQuery(q model.Query) (string, []any, error)

	// DBQuery returns raw rows in insertion order
	DBQuery(ctx context.Context, q model.Query) ([]model.Row, error)

	// FindRecords returns rows grouped into named features
	FindRecords(ctx context.Context, q model.Query) ([]model.Record, error)

	// Describe returns sorted distinct values of the requested columns
	Describe(ctx context.Context, q model.DescribeQuery) (map[string][]string, error)

	// Count returns the number of rows matching a query
	Count(ctx context.Context, q model.Query) (int, error)

	// Size returns the total number of stored rows
	Size(ctx context.Context) (int, error)

	Close() error
}

// AnnotationDBFactory opens an empty or existing database for a format. An
// empty dsn opens an in-memory database.
type AnnotationDBFactory func(ctx context.Context, format model.AnnotationFormat, dsn string) (AnnotationDB, error)
