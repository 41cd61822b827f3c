package sqlite

import (
	"context"
	"database/sql"
	"maps"
	"slices"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// table describes how a query maps onto one annotation table.
type table struct {
	name      string
	seqColumn string
	idColumn  string
	strand    func(string) (any, error)
}

func (t table) makeSQLQuery(q model.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var (
		clauses []string
		values  []any
	)

	if q.SeqName != "" {
		clauses = append(clauses, t.seqColumn+" == ?")
		values = append(values, q.SeqName)
	}
	if q.BioType != "" {
		clauses = append(clauses, "Type == ?")
		values = append(values, q.BioType)
	}
	if q.Identifier != "" {
		clauses = append(clauses, t.idColumn+" like ?")
		values = append(values, "%"+q.Identifier+"%")
	}

	switch {
	case q.Start != nil && q.End != nil:
		clauses = append(clauses, "Start >= ? AND End < ?")
		values = append(values, *q.Start, *q.End)
	case q.Start != nil:
		clauses = append(clauses, "Start >= ?")
		values = append(values, *q.Start)
	case q.End != nil:
		clauses = append(clauses, "End < ?")
		values = append(values, *q.End)
	}

	if q.Strand != "" {
		strand, err := t.strand(q.Strand)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, "Strand == ?")
		values = append(values, strand)
	}

	return "SELECT * FROM " + t.name + " WHERE " + strings.Join(clauses, " AND "), values, nil
}

func (t table) query(ctx context.Context, db *sql.DB, q model.Query) ([]model.Row, error) {
	query, args, err := t.makeSQLQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query+" ORDER BY rowid", args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query annotations", goerr.V("query", query))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read columns")
	}

	var result []model.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, goerr.Wrap(err, "failed to scan annotation row")
		}

		row := model.Row{Columns: columns, Values: make(map[string]any, len(columns))}
		for i, c := range columns {
			row.Values[c] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate annotation rows")
	}
	return result, nil
}

func (t table) count(ctx context.Context, db *sql.DB, q model.Query) (int, error) {
	query, args, err := t.makeSQLQuery(q)
	if err != nil {
		return 0, err
	}
	query = "SELECT COUNT(*)" + strings.TrimPrefix(query, "SELECT *")

	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, goerr.Wrap(err, "failed to count annotations", goerr.V("query", query))
	}
	return n, nil
}

func (t table) size(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
		return 0, goerr.Wrap(err, "failed to count table rows", goerr.V("table", t.name))
	}
	return n, nil
}

func (t table) distinct(ctx context.Context, db *sql.DB, column string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT DISTINCT "+column+" FROM "+t.name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query distinct values", goerr.V("column", column))
	}
	defer rows.Close()

	set := map[string]struct{}{}
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to scan distinct value", goerr.V("column", column))
		}
		set[v.String] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate distinct values")
	}

	return sortedKeys(set), nil
}

func textStrand(v string) (any, error) {
	switch v {
	case "+", "-", ".", "?":
		return v, nil
	case "1":
		return "+", nil
	case "-1":
		return "-", nil
	}
	return nil, goerr.New("invalid strand", goerr.V("strand", v), goerr.T(types.ErrTagInvalidArgument))
}

func numericStrand(v string) (any, error) {
	switch v {
	case "+", "1":
		return 1, nil
	case "-", "-1":
		return -1, nil
	}
	return nil, goerr.New("invalid strand", goerr.V("strand", v), goerr.T(types.ErrTagInvalidArgument))
}

func sortedKeys(set map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(set))
}
