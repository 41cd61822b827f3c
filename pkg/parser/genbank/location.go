package genbank

import (
	"strconv"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// ParseLocation converts a feature location string such as
// "complement(join(1..10,20..>30))" into 0-based half-open spans. Strand is
// -1 when every part is complemented, otherwise 1.
func ParseLocation(s string) (model.Location, error) {
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' {
			return -1
		}
		return r
	}, s)
	if compact == "" {
		return model.Location{}, goerr.New("empty location", goerr.T(types.ErrTagParse))
	}

	spans, strand, err := parseLocation(compact)
	if err != nil {
		return model.Location{}, goerr.Wrap(err, "failed to parse location",
			goerr.V("location", s),
			goerr.T(types.ErrTagParse))
	}
	return model.Location{Spans: spans, Strand: strand}, nil
}

func parseLocation(s string) ([][2]int, int, error) {
	switch {
	case strings.HasPrefix(s, "complement(") && strings.HasSuffix(s, ")"):
		spans, strand, err := parseLocation(s[len("complement(") : len(s)-1])
		if err != nil {
			return nil, 0, err
		}
		return spans, -strand, nil

	case strings.HasPrefix(s, "join(") && strings.HasSuffix(s, ")"):
		return parseList(s[len("join(") : len(s)-1])

	case strings.HasPrefix(s, "order(") && strings.HasSuffix(s, ")"):
		return parseList(s[len("order(") : len(s)-1])
	}

	if strings.Contains(s, ":") {
		return nil, 0, goerr.New("remote locations are not supported",
			goerr.V("location", s),
			goerr.T(types.ErrTagUnsupported))
	}

	span, err := parseRange(s)
	if err != nil {
		return nil, 0, err
	}
	return [][2]int{span}, 1, nil
}

func parseList(s string) ([][2]int, int, error) {
	var (
		spans  [][2]int
		strand = -1
		depth  int
		from   int
	)

	parts := make([]string, 0, 4)
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[from:i])
				from = i + 1
			}
		}
	}
	parts = append(parts, s[from:])

	for _, part := range parts {
		sub, st, err := parseLocation(part)
		if err != nil {
			return nil, 0, err
		}
		spans = append(spans, sub...)
		if st != -1 {
			strand = 1
		}
	}
	return spans, strand, nil
}

func parseRange(s string) ([2]int, error) {
	var first, last string
	switch {
	case strings.Contains(s, ".."):
		first, last, _ = strings.Cut(s, "..")
	case strings.Contains(s, "^"):
		first, last, _ = strings.Cut(s, "^")
	case strings.Contains(s, "."):
		first, last, _ = strings.Cut(s, ".")
	default:
		first, last = s, s
	}

	a, err := parsePosition(first)
	if err != nil {
		return [2]int{}, err
	}
	b, err := parsePosition(last)
	if err != nil {
		return [2]int{}, err
	}
	if a > b {
		a, b = b, a
	}
	return [2]int{a - 1, b}, nil
}

func parsePosition(s string) (int, error) {
	s = strings.TrimLeft(s, "<>")
	s = strings.TrimRight(s, "<>")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, goerr.Wrap(err, "invalid position", goerr.V("position", s))
	}
	return v, nil
}
