// Package gff reads GFF3 and GFF2/GTF feature files.
package gff

import (
	"bufio"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

const maxLineSize = 16 * 1024 * 1024

// Parse reads every feature line from r. Parsing stops at a "##FASTA"
// directive.
func Parse(r io.Reader) ([]*model.GFFRecord, error) {
	var records []*model.GFFRecord
	err := Scan(r, func(rec *model.GFFRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Scan calls fn for every feature line of r in file order. An error from fn
// stops the scan and is returned as is.
func Scan(r io.Reader, fn func(*model.GFFRecord) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")

		if strings.HasPrefix(line, "##FASTA") {
			break
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := parseLine(line)
		if err != nil {
			return goerr.Wrap(err, "failed to parse GFF line", goerr.V("line", lineNo), goerr.T(types.ErrTagParse))
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read GFF", goerr.V("line", lineNo))
	}
	return nil
}

func parseLine(line string) (*model.GFFRecord, error) {
	var comments string
	cols := strings.Split(line, "\t")
	if len(cols) > 9 {
		// Anything after the ninth column is a trailing comment.
		comments = strings.TrimSpace(strings.TrimPrefix(strings.Join(cols[9:], "\t"), "#"))
		cols = cols[:9]
	}
	if len(cols) == 8 {
		cols = append(cols, "")
	}
	if len(cols) != 9 {
		return nil, goerr.New("unexpected number of columns",
			goerr.V("columns", len(cols)),
			goerr.T(types.ErrTagParse))
	}

	start, err := strconv.Atoi(strings.TrimSpace(cols[3]))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid start", goerr.V("value", cols[3]), goerr.T(types.ErrTagParse))
	}
	end, err := strconv.Atoi(strings.TrimSpace(cols[4]))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid end", goerr.V("value", cols[4]), goerr.T(types.ErrTagParse))
	}
	if start > end {
		start, end = end, start
	}

	attrField := cols[8]
	if i := strings.Index(attrField, " #"); i >= 0 && comments == "" {
		comments = strings.TrimSpace(attrField[i+2:])
		attrField = attrField[:i]
	}

	return &model.GFFRecord{
		SeqID:      cols[0],
		Source:     cols[1],
		Type:       cols[2],
		Start:      start - 1,
		End:        end,
		Score:      cols[5],
		Strand:     cols[6],
		Phase:      cols[7],
		Attributes: ParseAttributes(attrField),
		Comments:   comments,
	}, nil
}

// ParseAttributes decodes the ninth column. GFF3 "key=value" pairs are
// URL-unescaped. GFF2 'key "value"' pairs are unquoted, and when no ID is
// present the first value becomes the ID.
func ParseAttributes(field string) map[string]string {
	attrs := map[string]string{}
	field = strings.TrimSpace(field)
	if field == "" || field == "." {
		return attrs
	}

	if isGFF3(field) {
		for _, part := range strings.Split(field, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			key, value, _ := strings.Cut(part, "=")
			if unescaped, err := url.PathUnescape(value); err == nil {
				value = unescaped
			}
			attrs[strings.TrimSpace(key)] = value
		}
		return attrs
	}

	var first string
	for _, part := range strings.Split(field, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, " ")
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if first == "" {
			first = value
		}
		attrs[key] = value
	}
	if _, ok := attrs["ID"]; !ok && first != "" {
		attrs["ID"] = first
	}
	return attrs
}

func isGFF3(field string) bool {
	first, _, _ := strings.Cut(field, ";")
	eq := strings.Index(first, "=")
	sp := strings.Index(strings.TrimSpace(first), " ")
	return eq >= 0 && (sp < 0 || eq < sp)
}
