// Package changelog parses the project's Markdown changelog into version
// sections, category blocks and entries.
package changelog

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

var (
	atxHeading     = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	setextH1       = regexp.MustCompile(`^=+\s*$`)
	setextH2       = regexp.MustCompile(`^-{2,}\s*$`)
	bulletItem     = regexp.MustCompile(`^( ?)[-*+]\s+(.*)$`)
	anchorLine     = regexp.MustCompile(`^<a\s[^>]*>\s*(</a>)?\s*$`)
	sinceRelease   = regexp.MustCompile("(?i)changes\\s+since\\s+(?:release\\s+)?[\"'`]?(v?[0-9][^\"'`\\s]*)")
	versionPattern = regexp.MustCompile(`v?\d+(?:\.\d+)+(?:(?:a|b|rc|dev|post)\d*)?(?:-[0-9A-Za-z.]+)?`)
)

// ParseVersion extracts the version range from a section title.
func ParseVersion(title string) model.VersionRange {
	if m := sinceRelease.FindStringSubmatch(title); m != nil {
		return model.VersionRange{Since: m[1]}
	}

	cleaned := strings.NewReplacer(`"`, "", "'", "", "`", "").Replace(title)
	versions := versionPattern.FindAllString(cleaned, -1)
	switch len(versions) {
	case 0:
		return model.VersionRange{Release: strings.TrimSpace(title)}
	case 1:
		return model.VersionRange{Release: versions[0]}
	default:
		return model.VersionRange{Since: versions[0], Release: versions[1]}
	}
}

type parser struct {
	log      *model.Changelog
	section  *model.Section
	category *model.CategoryBlock

	entryText  []string
	entryLine  int
	afterBlank bool
	bullet     bool
}

// Parse reads a Markdown changelog.
func Parse(r io.Reader) (*model.Changelog, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read changelog")
	}

	p := &parser{log: &model.Changelog{}}
	inComment := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if inComment {
			if strings.Contains(trimmed, "-->") {
				inComment = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "<!--") {
			inComment = !strings.Contains(trimmed, "-->")
			continue
		}
		if anchorLine.MatchString(trimmed) {
			continue
		}

		if m := atxHeading.FindStringSubmatch(line); m != nil && len(m[1]) <= 2 {
			if err := p.heading(len(m[1]), m[2], lineNo); err != nil {
				return nil, err
			}
			continue
		}

		if trimmed != "" && !bulletItem.MatchString(line) && i+1 < len(lines) && !p.inEntry() {
			next := lines[i+1]
			level := 0
			switch {
			case setextH1.MatchString(next):
				level = 1
			case setextH2.MatchString(next):
				level = 2
			}
			if level > 0 {
				if err := p.heading(level, trimmed, lineNo); err != nil {
					return nil, err
				}
				i++
				continue
			}
		}

		if err := p.text(line, lineNo); err != nil {
			return nil, err
		}
	}

	p.flushEntry()
	return p.log, nil
}

func (p *parser) inEntry() bool {
	return len(p.entryText) > 0 && !p.afterBlank
}

func (p *parser) heading(level int, title string, lineNo int) error {
	p.flushEntry()

	if level == 1 {
		p.section = &model.Section{
			Title:   title,
			Version: ParseVersion(title),
			Line:    lineNo,
		}
		p.log.Sections = append(p.log.Sections, p.section)
		p.category = nil
		return nil
	}

	if p.section == nil {
		return goerr.New("category heading before any version section",
			goerr.V("line", lineNo),
			goerr.V("heading", title),
			goerr.T(types.ErrTagParse))
	}

	category, _ := model.NormalizeCategory(title)
	p.category = &model.CategoryBlock{
		Category: category,
		Heading:  title,
		Line:     lineNo,
	}
	p.section.Categories = append(p.section.Categories, p.category)
	return nil
}

func (p *parser) text(line string, lineNo int) error {
	if strings.TrimSpace(line) == "" {
		if len(p.entryText) > 0 {
			p.afterBlank = true
		}
		return nil
	}

	indented := strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")

	if m := bulletItem.FindStringSubmatch(line); m != nil {
		return p.startEntry(m[2], lineNo, true)
	}

	// Continuation of the open item: either directly following it, or an
	// indented line after a blank inside a bullet.
	if len(p.entryText) > 0 && (!p.afterBlank || (p.bullet && indented)) {
		p.entryText = append(p.entryText, strings.TrimSpace(line))
		p.afterBlank = false
		return nil
	}

	return p.startEntry(strings.TrimSpace(line), lineNo, false)
}

func (p *parser) startEntry(text string, lineNo int, bullet bool) error {
	p.flushEntry()

	if p.section == nil {
		return goerr.New("changelog entry before any version section",
			goerr.V("line", lineNo),
			goerr.V("text", text),
			goerr.T(types.ErrTagParse))
	}
	if p.category == nil {
		return goerr.New("changelog entry before any category heading",
			goerr.V("line", lineNo),
			goerr.V("section", p.section.Title),
			goerr.V("text", text),
			goerr.T(types.ErrTagParse))
	}

	p.entryText = []string{text}
	p.entryLine = lineNo
	p.bullet = bullet
	p.afterBlank = false
	return nil
}

func (p *parser) flushEntry() {
	if len(p.entryText) == 0 {
		return
	}

	text := strings.Join(strings.Fields(strings.Join(p.entryText, " ")), " ")
	if text != "" && p.category != nil {
		p.category.Entries = append(p.category.Entries, model.Entry{
			Version:  p.section.Version,
			Category: p.category.Category,
			Text:     text,
			Line:     p.entryLine,
		})
	}

	p.entryText = nil
	p.afterBlank = false
	p.bullet = false
}
