package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/parser/genbank"
	"github.com/m-mizutani/goerr/v2"
)

const genbankSchema = `CREATE TABLE IF NOT EXISTS GENBANK (
	LocusID text,
	Type text,
	Spans text,
	Locus_Tag text,
	Start integer,
	End integer,
	Strand integer
)`

var genbankTable = table{
	name:      "GENBANK",
	seqColumn: "LocusID",
	idColumn:  "Locus_Tag",
	strand:    numericStrand,
}

// GenbankDB holds GenBank features that carry a locus_tag
type GenbankDB struct {
	db *sql.DB
}

// NewGenbankDB creates the GENBANK table on db if needed.
func NewGenbankDB(ctx context.Context, db *sql.DB) (*GenbankDB, error) {
	if _, err := db.ExecContext(ctx, genbankSchema); err != nil {
		return nil, goerr.Wrap(err, "failed to create GENBANK table")
	}
	return &GenbankDB{db: db}, nil
}

// Format returns model.FormatGenBank
func (x *GenbankDB) Format() model.AnnotationFormat {
	return model.FormatGenBank
}

// Populate replaces the stored rows with the features of the GenBank records
// in r. The source feature and features without a locus_tag are skipped.
func (x *GenbankDB) Populate(ctx context.Context, r io.Reader) (int, error) {
	records, err := genbank.Parse(r)
	if err != nil {
		return 0, err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM GENBANK"); err != nil {
		return 0, goerr.Wrap(err, "failed to clear GENBANK table")
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO GENBANK VALUES (?,?,?,?,?,?,?)")
	if err != nil {
		return 0, goerr.Wrap(err, "failed to prepare GENBANK insert")
	}
	defer stmt.Close()

	var n int
	for _, rec := range records {
		for i, f := range rec.Features {
			if i == 0 && f.Type == "source" {
				continue
			}
			tag, ok := f.Qualifier("locus_tag")
			if !ok || len(f.Location.Spans) == 0 {
				continue
			}

			spans, err := json.Marshal(f.Location.Spans)
			if err != nil {
				return 0, goerr.Wrap(err, "failed to encode spans")
			}
			start := f.Location.Spans[0][0]
			end := f.Location.Spans[len(f.Location.Spans)-1][1]

			if _, err := stmt.ExecContext(ctx,
				rec.Locus, f.Type, string(spans), tag, start, end, f.Location.Strand,
			); err != nil {
				return 0, goerr.Wrap(err, "failed to insert GENBANK row",
					goerr.V("locus", rec.Locus),
					goerr.V("locus_tag", tag))
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, goerr.Wrap(err, "failed to commit GENBANK rows")
	}
	return n, nil
}

// MakeSQLQuery builds the SELECT statement and its arguments for q.
func (x *GenbankDB) MakeSQLQuery(q model.Query) (string, []any, error) {
	return genbankTable.makeSQLQuery(q)
}

// DBQuery returns the raw rows matching q in insertion order.
func (x *GenbankDB) DBQuery(ctx context.Context, q model.Query) ([]model.Row, error) {
	return genbankTable.query(ctx, x.db, q)
}

// Count returns the number of rows matching q
func (x *GenbankDB) Count(ctx context.Context, q model.Query) (int, error) {
	return genbankTable.count(ctx, x.db, q)
}

// FindRecords returns one record per locus_tag and type. When several rows
// share a key the last one wins but keeps the first position.
func (x *GenbankDB) FindRecords(ctx context.Context, q model.Query) ([]model.Record, error) {
	rows, err := x.DBQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	var records []model.Record
	for _, row := range rows {
		var spans [][2]int
		if err := json.Unmarshal([]byte(row.String("Spans")), &spans); err != nil {
			return nil, goerr.Wrap(err, "failed to decode spans", goerr.V("spans", row.String("Spans")))
		}

		tag := row.String("Locus_Tag")
		rec := model.Record{Name: tag, Type: row.String("Type"), Spans: spans}
		key := tag + rec.Type
		if i, ok := index[key]; ok {
			records[i] = rec
			continue
		}
		index[key] = len(records)
		records = append(records, rec)
	}
	return records, nil
}

// Describe returns the distinct values of the requested fields, sorted.
func (x *GenbankDB) Describe(ctx context.Context, q model.DescribeQuery) (map[string][]string, error) {
	result := map[string][]string{}
	if !q.Any() {
		return result, nil
	}

	fields := []struct {
		want   bool
		column string
		key    string
	}{
		{q.SeqName, "LocusID", "LocusID"},
		{q.BioType, "Type", "Type"},
		{q.Identifier, "Locus_Tag", "identifier"},
	}
	for _, f := range fields {
		if !f.want {
			continue
		}
		values, err := genbankTable.distinct(ctx, x.db, f.column)
		if err != nil {
			return nil, err
		}
		result[f.key] = values
	}
	return result, nil
}

// Size returns the total number of stored rows
func (x *GenbankDB) Size(ctx context.Context) (int, error) {
	return genbankTable.size(ctx, x.db)
}

// Close closes the underlying database
func (x *GenbankDB) Close() error {
	return x.db.Close()
}
