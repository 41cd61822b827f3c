package model

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Feature is a named, typed region of an annotated sequence
type Feature struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Map        Map               `json:"-"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// featureJSON is the wire form of a Feature. Strand is "-" when every span
// is on the reverse strand.
type featureJSON struct {
	Type         string            `json:"type"`
	Name         string            `json:"name"`
	Spans        [][2]int          `json:"spans"`
	ParentLength int               `json:"parent_length"`
	Strand       string            `json:"strand,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// MarshalJSON encodes the feature as
// {"type","name","spans":[[s,e],...],"parent_length"}. Features mixing
// forward and reverse spans cannot be encoded.
func (f Feature) MarshalJSON() ([]byte, error) {
	out := featureJSON{
		Type:         f.Type,
		Name:         f.Name,
		Spans:        f.Map.Coordinates(),
		ParentLength: f.Map.ParentLength,
		Attributes:   f.Attributes,
	}

	reversed := 0
	for _, span := range f.Map.Spans {
		if span.Reverse {
			reversed++
		}
	}
	switch {
	case reversed == 0:
	case reversed == len(f.Map.Spans):
		out.Strand = "-"
	default:
		return nil, goerr.New("feature mixes forward and reverse spans",
			goerr.V("feature", f.Name),
			goerr.T(types.ErrTagUnsupported))
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON and validates the
// spans against parent_length.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var in featureJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return goerr.Wrap(err, "failed to decode feature", goerr.T(types.ErrTagParse))
	}

	m, err := MapFromCoordinates(in.Spans, in.ParentLength)
	if err != nil {
		return goerr.Wrap(err, "invalid feature spans", goerr.V("feature", in.Name))
	}
	switch in.Strand {
	case "", "+":
	case "-":
		for i := range m.Spans {
			m.Spans[i].Reverse = true
		}
	default:
		return goerr.New("invalid feature strand",
			goerr.V("strand", in.Strand),
			goerr.T(types.ErrTagInvalidArgument))
	}

	*f = Feature{Type: in.Type, Name: in.Name, Map: m, Attributes: in.Attributes}
	return nil
}

// Len returns the number of positions covered by the feature
func (f *Feature) Len() int {
	return f.Map.Len()
}

// Coordinates returns the feature spans as (start, end) pairs
func (f *Feature) Coordinates() [][2]int {
	return f.Map.Coordinates()
}

// AsOneSpan returns a feature of type "span" covering the whole extent of f.
func (f *Feature) AsOneSpan() *Feature {
	return &Feature{
		Type: "span",
		Name: f.Name,
		Map:  f.Map.CoveringSpan(),
	}
}

// Shadow returns a "region" feature over everything f does not cover.
func (f *Feature) Shadow() *Feature {
	return &Feature{
		Type: "region",
		Name: "not " + f.Name,
		Map:  f.Map.Shadow(),
	}
}

// Matches reports whether the feature type and name match shell-style
// patterns. An empty name pattern matches any name.
func (f *Feature) Matches(typePattern, namePattern string) bool {
	if ok, _ := path.Match(typePattern, f.Type); !ok {
		return false
	}
	if namePattern == "" {
		return true
	}
	ok, _ := path.Match(namePattern, f.Name)
	return ok
}

func (f *Feature) String() string {
	if f.Name == "" {
		return fmt.Sprintf("%s at %s", f.Type, f.Map)
	}
	return fmt.Sprintf("%s %q at %s", f.Type, f.Name, f.Map)
}

// RegionCoveringAll returns a "region" feature spanning every position
// covered by the given features. The name lists their distinct types.
func RegionCoveringAll(parentLength int, features []*Feature) *Feature {
	var spans []Span
	var names []string
	seen := map[string]struct{}{}
	for _, f := range features {
		spans = append(spans, f.Map.Spans...)
		if _, ok := seen[f.Type]; !ok {
			seen[f.Type] = struct{}{}
			names = append(names, f.Type)
		}
	}

	m := Map{Spans: spans, ParentLength: parentLength}
	return &Feature{
		Type: "region",
		Name: strings.Join(names, ","),
		Map:  m.Covered(),
	}
}
