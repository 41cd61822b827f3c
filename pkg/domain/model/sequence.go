package model

import (
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

var complementTable = map[byte]byte{
	'A': 'T', 'T': 'A', 'U': 'A', 'G': 'C', 'C': 'G',
	'R': 'Y', 'Y': 'R', 'S': 'S', 'W': 'W', 'K': 'M', 'M': 'K',
	'B': 'V', 'V': 'B', 'D': 'H', 'H': 'D', 'N': 'N',
	'a': 't', 't': 'a', 'u': 'a', 'g': 'c', 'c': 'g',
	'r': 'y', 'y': 'r', 's': 's', 'w': 'w', 'k': 'm', 'm': 'k',
	'b': 'v', 'v': 'b', 'd': 'h', 'h': 'd', 'n': 'n',
	'-': '-', '?': '?', '.': '.',
}

// ReverseComplement returns the reverse complement of a nucleic acid string.
// RNA input (any U present and no T) keeps U for adenine complements.
func ReverseComplement(seq string) string {
	rna := strings.ContainsAny(seq, "Uu") && !strings.ContainsAny(seq, "Tt")

	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		c := seq[len(seq)-1-i]
		r, ok := complementTable[c]
		if !ok {
			r = c
		}
		if rna {
			switch r {
			case 'T':
				r = 'U'
			case 't':
				r = 'u'
			}
		}
		out[i] = r
	}
	return string(out)
}

// Sequence is a named nucleic acid sequence with attached features.
type Sequence struct {
	Name        string     `json:"name"`
	Seq         string     `json:"seq"`
	Annotations []*Feature `json:"annotations,omitempty"`
}

// NewSequence creates an unannotated sequence
func NewSequence(name, seq string) *Sequence {
	return &Sequence{Name: name, Seq: seq}
}

// Len returns the sequence length
func (s *Sequence) Len() int {
	return len(s.Seq)
}

// AddFeature attaches a forward-strand feature built from (start, end) pairs.
func (s *Sequence) AddFeature(featureType, name string, coords [][2]int) (*Feature, error) {
	m, err := MapFromCoordinates(coords, s.Len())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to add feature",
			goerr.V("type", featureType),
			goerr.V("name", name),
			goerr.V("sequence", s.Name))
	}

	f := &Feature{Type: featureType, Name: name, Map: m}
	s.Annotations = append(s.Annotations, f)
	return f, nil
}

// AnnotateFromRecords attaches one feature per database record.
func (s *Sequence) AnnotateFromRecords(records []Record) ([]*Feature, error) {
	features := make([]*Feature, 0, len(records))
	for _, r := range records {
		f, err := s.AddFeature(r.Type, r.Name, r.Spans)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

// AnnotationsMatching returns the attached features matching shell-style
// type and name patterns.
func (s *Sequence) AnnotationsMatching(typePattern, namePattern string) []*Feature {
	var result []*Feature
	for _, f := range s.Annotations {
		if f.Matches(typePattern, namePattern) {
			result = append(result, f)
		}
	}
	return result
}

// RegionCoveringAll returns a region feature over the given features.
func (s *Sequence) RegionCoveringAll(features []*Feature) *Feature {
	return RegionCoveringAll(s.Len(), features)
}

// Extract returns the feature's residues in span order. Reverse spans are
// reverse complemented.
func (s *Sequence) Extract(f *Feature) (string, error) {
	var sb strings.Builder
	for _, span := range f.Map.Spans {
		if span.Start < 0 || span.End > s.Len() || span.Start > span.End {
			return "", goerr.New("feature extends beyond sequence",
				goerr.V("feature", f.String()),
				goerr.V("sequence", s.Name),
				goerr.V("length", s.Len()),
				goerr.T(types.ErrTagInvalidArgument))
		}

		sub := s.Seq[span.Start:span.End]
		if span.Reverse {
			sub = ReverseComplement(sub)
		}
		sb.WriteString(sub)
	}
	return sb.String(), nil
}

// ByAnnotation extracts one sequence per matching feature. When
// ignorePartial is set, features that cannot be extracted are skipped.
func (s *Sequence) ByAnnotation(typePattern, namePattern string, ignorePartial bool) ([]*Sequence, error) {
	var result []*Sequence
	for _, f := range s.AnnotationsMatching(typePattern, namePattern) {
		seq, err := s.Extract(f)
		if err != nil {
			if ignorePartial {
				continue
			}
			return nil, err
		}
		result = append(result, NewSequence(f.Name, seq))
	}
	return result, nil
}

// ReverseComplement returns a new sequence with every feature mapped onto
// the reverse strand.
func (s *Sequence) ReverseComplement() *Sequence {
	rc := NewSequence(s.Name, ReverseComplement(s.Seq))
	for _, f := range s.Annotations {
		rc.Annotations = append(rc.Annotations, &Feature{
			Type:       f.Type,
			Name:       f.Name,
			Map:        f.Map.NucleicReversed(),
			Attributes: f.Attributes,
		})
	}
	return rc
}

// Slice returns the sub-sequence [start, end). Features overlapping the
// window are clipped to it and shifted; features left empty are dropped.
func (s *Sequence) Slice(start, end int) (*Sequence, error) {
	if start < 0 || end > s.Len() || start > end {
		return nil, goerr.New("slice out of range",
			goerr.V("start", start),
			goerr.V("end", end),
			goerr.V("length", s.Len()),
			goerr.T(types.ErrTagInvalidArgument))
	}

	sliced := NewSequence(s.Name, s.Seq[start:end])
	for _, f := range s.Annotations {
		var spans []Span
		for _, span := range f.Map.Spans {
			lo, hi := max(span.Start, start), min(span.End, end)
			if lo >= hi {
				continue
			}
			spans = append(spans, Span{Start: lo - start, End: hi - start, Reverse: span.Reverse})
		}
		if len(spans) == 0 {
			continue
		}
		sliced.Annotations = append(sliced.Annotations, &Feature{
			Type:       f.Type,
			Name:       f.Name,
			Map:        Map{Spans: spans, ParentLength: end - start},
			Attributes: f.Attributes,
		})
	}
	return sliced, nil
}
