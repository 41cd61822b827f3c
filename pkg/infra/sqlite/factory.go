package sqlite

import (
	"context"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

var (
	_ interfaces.AnnotationDB = (*GffDB)(nil)
	_ interfaces.AnnotationDB = (*GenbankDB)(nil)

	_ interfaces.AnnotationDBFactory = NewAnnotationDB
)

// NewAnnotationDB opens the database at dsn and prepares the table of the
// given format. An empty dsn opens an in-memory database.
func NewAnnotationDB(ctx context.Context, format model.AnnotationFormat, dsn string) (interfaces.AnnotationDB, error) {
	db, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	var store interfaces.AnnotationDB
	switch format {
	case model.FormatGFF:
		store, err = NewGffDB(ctx, db)
	case model.FormatGenBank:
		store, err = NewGenbankDB(ctx, db)
	default:
		err = goerr.New("unsupported annotation format",
			goerr.V("format", format),
			goerr.T(types.ErrTagUnsupported))
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
