package model

import (
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// AnnotationFormat identifies the source format of an annotation file
type AnnotationFormat string

const (
	FormatGFF     AnnotationFormat = "gff"
	FormatGenBank AnnotationFormat = "genbank"
)

// ParseAnnotationFormat accepts a format name or a file name and resolves
// the annotation format.
func ParseAnnotationFormat(v string) (AnnotationFormat, error) {
	lower := strings.ToLower(v)
	lower = strings.TrimSuffix(lower, ".gz")

	switch {
	case lower == "gff", lower == "gff3", lower == "gtf",
		strings.HasSuffix(lower, ".gff"), strings.HasSuffix(lower, ".gff3"), strings.HasSuffix(lower, ".gtf"):
		return FormatGFF, nil
	case lower == "genbank", lower == "gb", lower == "gbk",
		strings.HasSuffix(lower, ".gb"), strings.HasSuffix(lower, ".gbk"), strings.HasSuffix(lower, ".genbank"):
		return FormatGenBank, nil
	}

	return "", goerr.New("unknown annotation format",
		goerr.V("value", v),
		goerr.T(types.ErrTagUnsupported))
}

// GFFRecord is one feature line of a GFF file. Start is 0-based, End is
// exclusive.
type GFFRecord struct {
	SeqID      string            `json:"seq_id"`
	Source     string            `json:"source"`
	Type       string            `json:"type"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Score      string            `json:"score"`
	Strand     string            `json:"strand"`
	Phase      string            `json:"phase"`
	Attributes map[string]string `json:"attributes"`
	Comments   string            `json:"comments,omitempty"`
}

// Location is a parsed GenBank feature location
type Location struct {
	Spans  [][2]int `json:"spans"`
	Strand int      `json:"strand"`
}

// GenBankFeature is one entry of a GenBank FEATURES table.
type GenBankFeature struct {
	Type       string              `json:"type"`
	Location   Location            `json:"location"`
	RawLoc     string              `json:"raw_location"`
	Qualifiers map[string][]string `json:"qualifiers"`
}

// Qualifier returns the first value of a qualifier
func (f *GenBankFeature) Qualifier(key string) (string, bool) {
	values, ok := f.Qualifiers[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// GenBankRecord is one LOCUS entry
type GenBankRecord struct {
	Locus    string            `json:"locus"`
	Features []*GenBankFeature `json:"features"`
	Sequence string            `json:"sequence,omitempty"`
}

// Query selects annotation rows. At least one of BioType or Identifier must
// be set. Start and End are optional bounds (Start inclusive, End exclusive).
type Query struct {
	SeqName    string `json:"seq_name,omitempty"`
	BioType    string `json:"bio_type,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Start      *int   `json:"start,omitempty"`
	End        *int   `json:"end,omitempty"`
	Strand     string `json:"strand,omitempty"`
}

// Validate checks that the query can be turned into SQL.
func (q Query) Validate() error {
	if q.BioType == "" && q.Identifier == "" {
		return goerr.New("no arguments provided: bio_type or identifier is required",
			goerr.T(types.ErrTagInvalidArgument))
	}
	if q.Start != nil && q.End != nil && *q.Start > *q.End {
		return goerr.New("start must not exceed end",
			goerr.V("start", *q.Start),
			goerr.V("end", *q.End),
			goerr.T(types.ErrTagInvalidArgument))
	}
	return nil
}

// DescribeQuery selects which distinct value sets Describe returns.
type DescribeQuery struct {
	SeqName    bool
	BioType    bool
	Identifier bool
}

// Any reports whether any field was requested
func (q DescribeQuery) Any() bool {
	return q.SeqName || q.BioType || q.Identifier
}

// Record is a feature found in an annotation database, grouped from one or
// more rows.
type Record struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Spans [][2]int `json:"spans"`
}

// Row is a raw annotation row as stored. Columns holds the column names in
// table order.
type Row struct {
	Columns []string       `json:"columns"`
	Values  map[string]any `json:"values"`
}

// String returns a column value as text
func (r Row) String(column string) string {
	switch v := r.Values[column].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return ""
	}
}

// Int returns an integer column value
func (r Row) Int(column string) int {
	switch v := r.Values[column].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
