package model

import (
	"fmt"
	"strings"
)

// Category is a changelog heading that classifies entries
type Category string

const (
	CategoryContributors Category = "Contributors"
	CategoryENH          Category = "ENH"
	CategoryBUG          Category = "BUG"
	CategoryDEP          Category = "DEP"
	CategoryAPI          Category = "API"
	CategoryDOC          Category = "DOC"
	CategoryDEV          Category = "DEV"
)

// KnownCategories lists the recognised categories in canonical order
var KnownCategories = []Category{
	CategoryContributors,
	CategoryENH,
	CategoryBUG,
	CategoryDEP,
	CategoryAPI,
	CategoryDOC,
	CategoryDEV,
}

var categoryAliases = map[string]Category{
	"contributors":     CategoryContributors,
	"contributor":      CategoryContributors,
	"enh":              CategoryENH,
	"enhancement":      CategoryENH,
	"enhancements":     CategoryENH,
	"bug":              CategoryBUG,
	"bugs":             CategoryBUG,
	"bug fix":          CategoryBUG,
	"bug fixes":        CategoryBUG,
	"bugfixes":         CategoryBUG,
	"dep":              CategoryDEP,
	"deprecation":      CategoryDEP,
	"deprecations":     CategoryDEP,
	"api":              CategoryAPI,
	"api change":       CategoryAPI,
	"api changes":      CategoryAPI,
	"doc":              CategoryDOC,
	"docs":             CategoryDOC,
	"documentation":    CategoryDOC,
	"dev":              CategoryDEV,
	"development":      CategoryDEV,
	"developer":        CategoryDEV,
	"development tool": CategoryDEV,
}

// NormalizeCategory maps a heading to its canonical category. Unknown
// headings are returned trimmed with ok=false.
func NormalizeCategory(heading string) (Category, bool) {
	h := strings.TrimSpace(heading)
	if c, ok := categoryAliases[strings.ToLower(h)]; ok {
		return c, true
	}
	return Category(h), false
}

// Known reports whether c is one of KnownCategories
func (c Category) Known() bool {
	_, ok := categoryAliases[strings.ToLower(string(c))]
	return ok
}

// VersionRange identifies the releases a changelog section covers. Since is
// the previous release, Release the version the section ships in. An empty
// Release means unreleased changes.
type VersionRange struct {
	Since   string `json:"since,omitempty"`
	Release string `json:"release,omitempty"`
}

func (v VersionRange) String() string {
	switch {
	case v.Since != "" && v.Release != "":
		return v.Since + ".." + v.Release
	case v.Since != "":
		return "since " + v.Since
	default:
		return v.Release
	}
}

// Matches reports whether version names either end of the range
func (v VersionRange) Matches(version string) bool {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	if version == "" {
		return true
	}
	return strings.TrimPrefix(v.Since, "v") == version ||
		strings.TrimPrefix(v.Release, "v") == version
}

// Entry is a single changelog item
type Entry struct {
	Version  VersionRange `json:"version"`
	Category Category     `json:"category"`
	Text     string       `json:"text"`
	Line     int          `json:"line"`
}

// CategoryBlock holds the entries written under one category heading.
type CategoryBlock struct {
	Category Category `json:"category"`
	Heading  string   `json:"heading"`
	Entries  []Entry  `json:"entries"`
	Line     int      `json:"line"`
}

// Section is one version section of a changelog
type Section struct {
	Title      string           `json:"title"`
	Version    VersionRange     `json:"version"`
	Categories []*CategoryBlock `json:"categories"`
	Line       int              `json:"line"`
}

// Changelog is a parsed changelog document
type Changelog struct {
	Sections []*Section `json:"sections"`
}

// Entries flattens all entries in document order
func (c *Changelog) Entries() []Entry {
	var entries []Entry
	for _, s := range c.Sections {
		for _, b := range s.Categories {
			entries = append(entries, b.Entries...)
		}
	}
	return entries
}

// Filter returns the entries matching a category and version. Empty
// arguments match everything.
func (c *Changelog) Filter(category, version string) []Entry {
	var want Category
	if category != "" {
		want, _ = NormalizeCategory(category)
	}

	var entries []Entry
	for _, e := range c.Entries() {
		if want != "" && !strings.EqualFold(string(e.Category), string(want)) {
			continue
		}
		if !e.Version.Matches(version) {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// SectionSummary counts entries per category in one section
type SectionSummary struct {
	Version VersionRange     `json:"version"`
	Counts  map[Category]int `json:"counts"`
	Total   int              `json:"total"`
}

// Summary counts entries per category for every section
func (c *Changelog) Summary() []SectionSummary {
	summaries := make([]SectionSummary, 0, len(c.Sections))
	for _, s := range c.Sections {
		sum := SectionSummary{Version: s.Version, Counts: map[Category]int{}}
		for _, b := range s.Categories {
			sum.Counts[b.Category] += len(b.Entries)
			sum.Total += len(b.Entries)
		}
		summaries = append(summaries, sum)
	}
	return summaries
}

// ChangelogIssue is a structural problem found by Validate
type ChangelogIssue struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (i ChangelogIssue) String() string {
	return fmt.Sprintf("line %d: %s", i.Line, i.Message)
}

// Validate reports unknown or empty categories and duplicate sections.
func (c *Changelog) Validate() []ChangelogIssue {
	var issues []ChangelogIssue
	seen := map[VersionRange]int{}

	for _, s := range c.Sections {
		if prev, ok := seen[s.Version]; ok {
			issues = append(issues, ChangelogIssue{
				Line:    s.Line,
				Message: fmt.Sprintf("duplicate version section %q (first at line %d)", s.Version, prev),
			})
		} else {
			seen[s.Version] = s.Line
		}

		for _, b := range s.Categories {
			if !b.Category.Known() {
				issues = append(issues, ChangelogIssue{
					Line:    b.Line,
					Message: fmt.Sprintf("unknown category %q", b.Heading),
				})
			}
			if len(b.Entries) == 0 {
				issues = append(issues, ChangelogIssue{
					Line:    b.Line,
					Message: fmt.Sprintf("category %q has no entries", b.Heading),
				})
			}
		}
	}
	return issues
}

// Markdown renders the changelog in canonical form
func (c *Changelog) Markdown() string {
	var sb strings.Builder
	for i, s := range c.Sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "# %s\n", s.Title)
		for _, b := range s.Categories {
			fmt.Fprintf(&sb, "\n## %s\n\n", b.Heading)
			for _, e := range b.Entries {
				fmt.Fprintf(&sb, "- %s\n", e.Text)
			}
		}
	}
	return sb.String()
}
