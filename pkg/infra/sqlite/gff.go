package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/parser/gff"
	"github.com/m-mizutani/goerr/v2"
)

const gffSchema = `CREATE TABLE IF NOT EXISTS GFF (
	SeqID text,
	Source text,
	Type text,
	Start integer,
	End integer,
	Score text,
	Strand text,
	Phase text,
	Attributes text
)`

var gffTable = table{
	name:      "GFF",
	seqColumn: "SeqID",
	idColumn:  "Attributes",
	strand:    textStrand,
}

// GffDB holds GFF feature rows
type GffDB struct {
	db *sql.DB
}

// NewGffDB creates the GFF table on db if needed.
func NewGffDB(ctx context.Context, db *sql.DB) (*GffDB, error) {
	if _, err := db.ExecContext(ctx, gffSchema); err != nil {
		return nil, goerr.Wrap(err, "failed to create GFF table")
	}
	return &GffDB{db: db}, nil
}

// Format returns model.FormatGFF
func (x *GffDB) Format() model.AnnotationFormat {
	return model.FormatGFF
}

// Populate replaces the stored rows with the feature lines parsed from r in
// one transaction. It returns the number of rows inserted.
func (x *GffDB) Populate(ctx context.Context, r io.Reader) (int, error) {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM GFF"); err != nil {
		return 0, goerr.Wrap(err, "failed to clear GFF table")
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO GFF VALUES (?,?,?,?,?,?,?,?,?)")
	if err != nil {
		return 0, goerr.Wrap(err, "failed to prepare GFF insert")
	}
	defer stmt.Close()

	var n int
	err = gff.Scan(r, func(rec *model.GFFRecord) error {
		attrs, err := json.Marshal(rec.Attributes)
		if err != nil {
			return goerr.Wrap(err, "failed to encode attributes")
		}
		if _, err := stmt.ExecContext(ctx,
			rec.SeqID, rec.Source, rec.Type, rec.Start, rec.End,
			rec.Score, rec.Strand, rec.Phase, string(attrs),
		); err != nil {
			return goerr.Wrap(err, "failed to insert GFF row", goerr.V("seq_id", rec.SeqID), goerr.V("type", rec.Type))
		}
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, goerr.Wrap(err, "failed to commit GFF rows")
	}
	return n, nil
}

// MakeSQLQuery builds the SELECT statement and its arguments for q.
func (x *GffDB) MakeSQLQuery(q model.Query) (string, []any, error) {
	return gffTable.makeSQLQuery(q)
}

// DBQuery returns the raw rows matching q in insertion order.
func (x *GffDB) DBQuery(ctx context.Context, q model.Query) ([]model.Row, error) {
	return gffTable.query(ctx, x.db, q)
}

// Count returns the number of rows matching q
func (x *GffDB) Count(ctx context.Context, q model.Query) (int, error) {
	return gffTable.count(ctx, x.db, q)
}

// FindRecords groups matching rows by their feature identifier. Records are
// returned in the order their identifier was first seen and spans keep row
// order.
func (x *GffDB) FindRecords(ctx context.Context, q model.Query) ([]model.Record, error) {
	rows, err := x.DBQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	var records []model.Record
	for _, row := range rows {
		attrs, err := decodeAttributes(row.String("Attributes"))
		if err != nil {
			return nil, err
		}
		id := gffIdentifier(attrs, row)
		span := [2]int{row.Int("Start"), row.Int("End")}

		if i, ok := index[id]; ok {
			records[i].Spans = append(records[i].Spans, span)
			continue
		}
		index[id] = len(records)
		records = append(records, model.Record{
			Name:  id,
			Type:  row.String("Type"),
			Spans: [][2]int{span},
		})
	}
	return records, nil
}

// Describe returns the distinct values of the requested fields, sorted.
func (x *GffDB) Describe(ctx context.Context, q model.DescribeQuery) (map[string][]string, error) {
	result := map[string][]string{}
	if !q.Any() {
		return result, nil
	}

	if q.SeqName {
		values, err := gffTable.distinct(ctx, x.db, "SeqID")
		if err != nil {
			return nil, err
		}
		result["SeqID"] = values
	}
	if q.BioType {
		values, err := gffTable.distinct(ctx, x.db, "Type")
		if err != nil {
			return nil, err
		}
		result["Type"] = values
	}
	if q.Identifier {
		rows, err := x.db.QueryContext(ctx, "SELECT SeqID, Type, Start, End, Attributes FROM GFF")
		if err != nil {
			return nil, goerr.Wrap(err, "failed to query identifiers")
		}
		defer rows.Close()

		set := map[string]struct{}{}
		for rows.Next() {
			row := model.Row{Values: map[string]any{}}
			var seqID, typ, attrText string
			var start, end int64
			if err := rows.Scan(&seqID, &typ, &start, &end, &attrText); err != nil {
				return nil, goerr.Wrap(err, "failed to scan identifier row")
			}
			row.Values["SeqID"], row.Values["Type"] = seqID, typ
			row.Values["Start"], row.Values["End"] = start, end

			attrs, err := decodeAttributes(attrText)
			if err != nil {
				return nil, err
			}
			set[gffIdentifier(attrs, row)] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			return nil, goerr.Wrap(err, "failed to iterate identifiers")
		}
		result["identifier"] = sortedKeys(set)
	}
	return result, nil
}

// Size returns the total number of stored rows
func (x *GffDB) Size(ctx context.Context) (int, error) {
	return gffTable.size(ctx, x.db)
}

// Close closes the underlying database
func (x *GffDB) Close() error {
	return x.db.Close()
}

func decodeAttributes(text string) (map[string]string, error) {
	attrs := map[string]string{}
	if text == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(text), &attrs); err != nil {
		return nil, goerr.Wrap(err, "failed to decode attributes", goerr.V("attributes", text))
	}
	return attrs, nil
}

// gffIdentifier names a feature by its ID attribute, then its Name
// attribute, then its location.
func gffIdentifier(attrs map[string]string, row model.Row) string {
	if id := attrs["ID"]; id != "" {
		return id
	}
	if name := attrs["Name"]; name != "" {
		return name
	}
	return fmt.Sprintf("%s:%s:%d-%d", row.String("SeqID"), row.String("Type"), row.Int("Start"), row.Int("End"))
}
