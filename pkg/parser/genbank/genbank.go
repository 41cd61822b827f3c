// Package genbank is a minimal reader for GenBank flat files. It extracts
// the LOCUS name, the FEATURES table and the ORIGIN sequence.
package genbank

import (
	"bufio"
	"io"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

const (
	featureIndent   = 5
	qualifierIndent = 21
)

type section int

const (
	sectionHeader section = iota
	sectionFeatures
	sectionOrigin
)

type parser struct {
	records []*model.GenBankRecord
	current *model.GenBankRecord
	section section

	feature  *model.GenBankFeature
	locLine  int
	locParts []string
	qualKey  string
	qualBuf  []string
	qualOpen bool
	seq      strings.Builder
}

// Parse reads every record in r.
func Parse(r io.Reader) ([]*model.GenBankRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	p := &parser{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := p.line(strings.TrimRight(scanner.Text(), "\r"), lineNo); err != nil {
			return nil, goerr.Wrap(err, "failed to parse GenBank", goerr.V("line", lineNo), goerr.T(types.ErrTagParse))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read GenBank", goerr.V("line", lineNo))
	}
	if err := p.endRecord(); err != nil {
		return nil, goerr.Wrap(err, "failed to parse GenBank", goerr.V("line", lineNo), goerr.T(types.ErrTagParse))
	}

	if len(p.records) == 0 {
		return nil, goerr.New("no LOCUS record found", goerr.T(types.ErrTagParse))
	}
	return p.records, nil
}

func (p *parser) line(line string, lineNo int) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	if strings.HasPrefix(line, "//") {
		return p.endRecord()
	}

	if line[0] != ' ' {
		keyword, rest, _ := strings.Cut(line, " ")
		switch keyword {
		case "LOCUS":
			if err := p.endRecord(); err != nil {
				return err
			}
			fields := strings.Fields(rest)
			locus := ""
			if len(fields) > 0 {
				locus = fields[0]
			}
			p.current = &model.GenBankRecord{Locus: locus}
			p.section = sectionHeader
		case "FEATURES":
			p.section = sectionFeatures
		case "ORIGIN":
			if err := p.flushFeature(); err != nil {
				return err
			}
			p.section = sectionOrigin
		default:
			if p.section == sectionFeatures {
				if err := p.flushFeature(); err != nil {
					return err
				}
			}
			p.section = sectionHeader
		}
		return nil
	}

	switch p.section {
	case sectionFeatures:
		return p.featureLine(line, lineNo)
	case sectionOrigin:
		for _, c := range line {
			if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '-' || c == '*' {
				p.seq.WriteRune(c)
			}
		}
	}
	return nil
}

func (p *parser) featureLine(line string, lineNo int) error {
	if p.current == nil {
		return goerr.New("feature found before LOCUS")
	}

	if len(line) > featureIndent && line[featureIndent] != ' ' && strings.TrimSpace(line[:featureIndent]) == "" {
		if err := p.flushFeature(); err != nil {
			return err
		}
		fields := strings.Fields(line)
		p.feature = &model.GenBankFeature{Type: fields[0], Qualifiers: map[string][]string{}}
		p.locLine = lineNo
		if len(fields) > 1 {
			p.locParts = []string{strings.Join(fields[1:], "")}
		}
		return nil
	}

	if p.feature == nil {
		return nil
	}

	content := strings.TrimSpace(line)
	if p.qualOpen {
		p.qualBuf = append(p.qualBuf, content)
		if strings.HasSuffix(content, `"`) {
			p.qualOpen = false
			p.flushQualifier()
		}
		return nil
	}

	if strings.HasPrefix(content, "/") {
		p.flushQualifier()
		key, value, hasValue := strings.Cut(content[1:], "=")
		p.qualKey = key
		if !hasValue {
			p.qualBuf = nil
			p.flushQualifier()
			return nil
		}
		p.qualBuf = []string{value}
		if strings.HasPrefix(value, `"`) && (len(value) == 1 || !strings.HasSuffix(value, `"`)) {
			p.qualOpen = true
			return nil
		}
		p.flushQualifier()
		return nil
	}

	if len(p.feature.Qualifiers) == 0 && p.qualKey == "" {
		p.locParts = append(p.locParts, content)
	}
	return nil
}

func (p *parser) flushQualifier() {
	if p.qualKey == "" || p.feature == nil {
		return
	}

	sep := " "
	if p.qualKey == "translation" {
		sep = ""
	}
	value := strings.Join(p.qualBuf, sep)
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		value = value[1 : len(value)-1]
	}
	value = strings.ReplaceAll(value, `""`, `"`)

	p.feature.Qualifiers[p.qualKey] = append(p.feature.Qualifiers[p.qualKey], value)
	p.qualKey = ""
	p.qualBuf = nil
}

func (p *parser) flushFeature() error {
	p.flushQualifier()
	p.qualOpen = false
	if p.feature == nil {
		return nil
	}

	raw := strings.Join(p.locParts, "")
	loc, err := ParseLocation(raw)
	if err != nil {
		return goerr.Wrap(err, "invalid feature location",
			goerr.V("type", p.feature.Type),
			goerr.V("feature_line", p.locLine))
	}
	p.feature.RawLoc = raw
	p.feature.Location = loc
	p.current.Features = append(p.current.Features, p.feature)

	p.feature = nil
	p.locParts = nil
	return nil
}

func (p *parser) endRecord() error {
	if p.current == nil {
		return nil
	}
	if err := p.flushFeature(); err != nil {
		return err
	}
	p.current.Sequence = p.seq.String()
	p.records = append(p.records, p.current)

	p.current = nil
	p.seq.Reset()
	p.section = sectionHeader
	return nil
}
