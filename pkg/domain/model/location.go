package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Span is a half-open, 0-based interval on a parent sequence. Reverse marks
// a span that is read on the opposite strand.
type Span struct {
	Start   int  `json:"start"`
	End     int  `json:"end"`
	Reverse bool `json:"reverse,omitempty"`
}

// Len returns the number of positions covered by the span
func (s Span) Len() int {
	return s.End - s.Start
}

// ReversedRelativeTo returns the span as seen from the other end of a parent
// of the given length.
func (s Span) ReversedRelativeTo(length int) Span {
	return Span{
		Start:   length - s.End,
		End:     length - s.Start,
		Reverse: !s.Reverse,
	}
}

func (s Span) String() string {
	if s.Reverse {
		return fmt.Sprintf("-%d:%d", s.Start, s.End)
	}
	return fmt.Sprintf("%d:%d", s.Start, s.End)
}

// Map is an ordered list of spans on a parent of known length.
type Map struct {
	Spans        []Span `json:"spans"`
	ParentLength int    `json:"parent_length"`
}

// NewMap validates spans against the parent length.
func NewMap(spans []Span, parentLength int) (Map, error) {
	for _, s := range spans {
		if s.Start < 0 || s.End < s.Start || s.End > parentLength {
			return Map{}, goerr.New("span out of range",
				goerr.V("span", s.String()),
				goerr.V("parent_length", parentLength),
				goerr.T(types.ErrTagInvalidArgument))
		}
	}

	copied := make([]Span, len(spans))
	copy(copied, spans)
	return Map{Spans: copied, ParentLength: parentLength}, nil
}

// MapFromCoordinates builds a forward-strand map from (start, end) pairs.
func MapFromCoordinates(coords [][2]int, parentLength int) (Map, error) {
	spans := make([]Span, 0, len(coords))
	for _, c := range coords {
		spans = append(spans, Span{Start: c[0], End: c[1]})
	}
	return NewMap(spans, parentLength)
}

// Len returns the summed length of all spans
func (m Map) Len() int {
	var n int
	for _, s := range m.Spans {
		n += s.Len()
	}
	return n
}

// Start returns the smallest span start, or 0 for an empty map.
func (m Map) Start() int {
	if len(m.Spans) == 0 {
		return 0
	}
	start := m.Spans[0].Start
	for _, s := range m.Spans[1:] {
		start = min(start, s.Start)
	}
	return start
}

// End returns the largest span end, or 0 for an empty map.
func (m Map) End() int {
	var end int
	for _, s := range m.Spans {
		end = max(end, s.End)
	}
	return end
}

// Useful reports whether the map covers at least one position.
func (m Map) Useful() bool {
	for _, s := range m.Spans {
		if s.Len() > 0 {
			return true
		}
	}
	return false
}

// Coordinates returns the spans as (start, end) pairs in map order.
func (m Map) Coordinates() [][2]int {
	coords := make([][2]int, 0, len(m.Spans))
	for _, s := range m.Spans {
		coords = append(coords, [2]int{s.Start, s.End})
	}
	return coords
}

// Covered merges overlapping and adjacent spans into sorted forward spans.
func (m Map) Covered() Map {
	spans := make([]Span, 0, len(m.Spans))
	for _, s := range m.Spans {
		if s.Len() > 0 {
			spans = append(spans, Span{Start: s.Start, End: s.End})
		}
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start == spans[j].Start {
			return spans[i].End < spans[j].End
		}
		return spans[i].Start < spans[j].Start
	})

	var merged []Span
	for _, s := range spans {
		if n := len(merged); n > 0 && s.Start <= merged[n-1].End {
			merged[n-1].End = max(merged[n-1].End, s.End)
			continue
		}
		merged = append(merged, s)
	}
	return Map{Spans: merged, ParentLength: m.ParentLength}
}

// CoveringSpan returns a single-span map from Start() to End().
func (m Map) CoveringSpan() Map {
	if len(m.Spans) == 0 {
		return Map{ParentLength: m.ParentLength}
	}
	return Map{
		Spans:        []Span{{Start: m.Start(), End: m.End()}},
		ParentLength: m.ParentLength,
	}
}

// Shadow returns the regions of the parent not covered by the map.
func (m Map) Shadow() Map {
	var spans []Span
	pos := 0
	for _, s := range m.Covered().Spans {
		if s.Start > pos {
			spans = append(spans, Span{Start: pos, End: s.Start})
		}
		pos = s.End
	}
	if pos < m.ParentLength {
		spans = append(spans, Span{Start: pos, End: m.ParentLength})
	}
	return Map{Spans: spans, ParentLength: m.ParentLength}
}

// NucleicReversed maps every span onto the reverse complement of the parent.
// Span order is preserved.
func (m Map) NucleicReversed() Map {
	spans := make([]Span, 0, len(m.Spans))
	for _, s := range m.Spans {
		spans = append(spans, s.ReversedRelativeTo(m.ParentLength))
	}
	return Map{Spans: spans, ParentLength: m.ParentLength}
}

func (m Map) String() string {
	parts := make([]string, 0, len(m.Spans))
	for _, s := range m.Spans {
		parts = append(parts, s.String())
	}
	return fmt.Sprintf("[%s]/%d", strings.Join(parts, ", "), m.ParentLength)
}
