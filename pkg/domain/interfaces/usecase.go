package interfaces

import (
	"context"

	"github.com/m-mizutani/annodb/pkg/domain/model"
)

// AnnotationUseCase manages loaded annotation datasets. An empty dataset
// name selects the only loaded dataset.
type AnnotationUseCase interface {
	Load(ctx context.Context, ds model.Dataset) (*model.DatasetInfo, error)
	Datasets() []model.DatasetInfo
	FindRecords(ctx context.Context, dataset string, q model.Query) ([]model.Record, error)
	Describe(ctx context.Context, dataset string, q model.DescribeQuery) (map[string][]string, error)
	Count(ctx context.Context, dataset string, q model.Query) (int, error)
}

// ChangelogUseCase answers questions about the release changelog
type ChangelogUseCase interface {
	Entries(ctx context.Context, category, version string) ([]model.Entry, error)
	Summary(ctx context.Context) ([]model.SectionSummary, error)
	Validate(ctx context.Context) ([]model.ChangelogIssue, error)
}

// WorkflowUseCase models the CI workflow declaration
type WorkflowUseCase interface {
	Jobs(ctx context.Context) ([]model.JobCells, error)
	Trigger(ctx context.Context, ev model.TriggerEvent) (*model.Plan, error)
	Evaluate(ctx context.Context, reports []model.CellReport, files FileStore) (*model.RunOutcome, error)
	CheckCoverage(ctx context.Context, files FileStore) ([]model.CoverageReport, error)
}

// WorkflowProvider returns the workflow declaration that applies to a
// repository event
type WorkflowProvider interface {
	Workflow(ctx context.Context, src *model.SourceInfo) (*model.Workflow, error)
}

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent evaluates a webhook event against the workflow triggers
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) (*model.WebhookResult, error)
}
