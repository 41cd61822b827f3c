package usecase

import (
	"context"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/parser/changelog"
)

// Changelog answers queries over the release changelog file
type Changelog struct {
	doc *document[model.Changelog]
}

var _ interfaces.ChangelogUseCase = (*Changelog)(nil)

// NewChangelog creates the use case for the changelog at path. Load must be
// called before queries are served.
func NewChangelog(files interfaces.FileStore, path string) *Changelog {
	return &Changelog{doc: &document[model.Changelog]{
		kind:  "changelog",
		files: files,
		path:  path,
		parse: changelog.Parse,
	}}
}

// Path returns the changelog file path
func (c *Changelog) Path() string {
	return c.doc.path
}

// Load reads and parses the changelog, replacing the previous version
func (c *Changelog) Load(ctx context.Context) error {
	return c.doc.load(ctx)
}

// Document returns the parsed changelog
func (c *Changelog) Document(ctx context.Context) (*model.Changelog, error) {
	return c.doc.get()
}

// Entries returns entries filtered by category and version
func (c *Changelog) Entries(ctx context.Context, category, version string) ([]model.Entry, error) {
	doc, err := c.doc.get()
	if err != nil {
		return nil, err
	}
	return doc.Filter(category, version), nil
}

// Summary counts entries per category per section
func (c *Changelog) Summary(ctx context.Context) ([]model.SectionSummary, error) {
	doc, err := c.doc.get()
	if err != nil {
		return nil, err
	}
	return doc.Summary(), nil
}

// Validate reports structural problems of the changelog
func (c *Changelog) Validate(ctx context.Context) ([]model.ChangelogIssue, error) {
	doc, err := c.doc.get()
	if err != nil {
		return nil, err
	}
	return doc.Validate(), nil
}
