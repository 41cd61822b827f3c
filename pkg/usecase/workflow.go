package usecase

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/metrics"
	"github.com/m-mizutani/annodb/pkg/parser/workflow"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const defaultEvalConcurrency = 8

// Workflow models the CI workflow file. It also serves as the
// WorkflowProvider when every event is evaluated against the same file.
type Workflow struct {
	doc         *document[model.Workflow]
	metrics     *metrics.Metrics
	concurrency int
}

var (
	_ interfaces.WorkflowUseCase  = (*Workflow)(nil)
	_ interfaces.WorkflowProvider = (*Workflow)(nil)
)

// WorkflowOption configures Workflow
type WorkflowOption func(*Workflow)

// WithWorkflowMetrics records evaluated cells
func WithWorkflowMetrics(m *metrics.Metrics) WorkflowOption {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// WithEvalConcurrency bounds the number of cells evaluated at once
func WithEvalConcurrency(n int) WorkflowOption {
	return func(w *Workflow) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// NewWorkflow creates the use case for the workflow file at path. Load must
// be called before queries are served.
func NewWorkflow(files interfaces.FileStore, path string, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		doc: &document[model.Workflow]{
			kind:  "workflow",
			files: files,
			path:  path,
			parse: workflow.Parse,
		},
		concurrency: defaultEvalConcurrency,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the workflow file path
func (w *Workflow) Path() string {
	return w.doc.path
}

// Load reads and parses the workflow, replacing the previous version
func (w *Workflow) Load(ctx context.Context) error {
	return w.doc.load(ctx)
}

// Workflow returns the loaded workflow for any event
func (w *Workflow) Workflow(ctx context.Context, src *model.SourceInfo) (*model.Workflow, error) {
	return w.doc.get()
}

// Jobs expands every job matrix
func (w *Workflow) Jobs(ctx context.Context) ([]model.JobCells, error) {
	wf, err := w.doc.get()
	if err != nil {
		return nil, err
	}
	return wf.ExpandJobs()
}

// Trigger decides whether ev triggers the workflow and resolves the cells
func (w *Workflow) Trigger(ctx context.Context, ev model.TriggerEvent) (*model.Plan, error) {
	if ev.Name == "" {
		return nil, goerr.New("event name is required", goerr.T(types.ErrTagInvalidArgument))
	}
	wf, err := w.doc.get()
	if err != nil {
		return nil, err
	}
	return wf.Plan(ev)
}

type cellKey struct {
	job  string
	cell int
}

// Evaluate computes cell outcomes from reported step results. Cells are
// evaluated concurrently and returned in matrix order. files is used to
// check coverage reports; nil skips the check.
func (w *Workflow) Evaluate(ctx context.Context, reports []model.CellReport, files interfaces.FileStore) (*model.RunOutcome, error) {
	wf, err := w.doc.get()
	if err != nil {
		return nil, err
	}
	plans, err := wf.Resolve()
	if err != nil {
		return nil, err
	}

	planned := make(map[cellKey]int, len(plans))
	for i, p := range plans {
		planned[cellKey{p.Job, p.Cell.Index}] = i
	}

	byCell := make(map[cellKey]*model.CellReport, len(reports))
	for i := range reports {
		r := &reports[i]
		key := cellKey{r.Job, r.Cell}
		idx, ok := planned[key]
		if !ok {
			return nil, goerr.New("report for an unknown cell",
				goerr.V("job", r.Job),
				goerr.V("cell", r.Cell),
				goerr.T(types.ErrTagInvalidArgument))
		}
		if len(r.Steps) > len(plans[idx].Steps) {
			return nil, goerr.New("report has more results than steps",
				goerr.V("job", r.Job),
				goerr.V("cell", r.Cell),
				goerr.V("results", len(r.Steps)),
				goerr.V("steps", len(plans[idx].Steps)),
				goerr.T(types.ErrTagInvalidArgument))
		}
		if _, dup := byCell[key]; dup {
			return nil, goerr.New("duplicate report for a cell",
				goerr.V("job", r.Job),
				goerr.V("cell", r.Cell),
				goerr.T(types.ErrTagInvalidArgument))
		}
		byCell[key] = r
	}

	outcomes := make([]model.CellOutcome, len(plans))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.concurrency)

	for i, plan := range plans {
		job, _ := wf.Job(plan.Job)
		report := byCell[cellKey{plan.Job, plan.Cell.Index}]

		eg.Go(func() error {
			out, err := evaluateCell(egCtx, plan, job, report, files)
			if err != nil {
				return goerr.Wrap(err, "failed to evaluate cell",
					goerr.V("job", plan.Job),
					goerr.V("cell", plan.Cell.Index))
			}
			outcomes[i] = *out
			w.metrics.CellOutcome(plan.Job, string(out.Status))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	run := &model.RunOutcome{Status: model.StatusSuccess, Cells: outcomes}
	for _, c := range outcomes {
		if c.Status == model.StatusFailure && !c.ContinueOnError {
			run.Status = model.StatusFailure
		}
	}

	ctxlog.From(ctx).Info("workflow evaluated",
		"cells", len(outcomes),
		"failed", len(run.Failed()),
		"status", run.Status,
	)
	return run, nil
}

func evaluateCell(ctx context.Context, plan model.CellPlan, job *model.Job, report *model.CellReport, files interfaces.FileStore) (*model.CellOutcome, error) {
	out := &model.CellOutcome{
		Job:    plan.Job,
		Name:   plan.Name,
		Cell:   plan.Cell,
		Status: model.StatusSuccess,
	}
	if job != nil {
		out.ContinueOnError = job.ContinueOnError
	}

	failed := false
	for i, step := range plan.Steps {
		so := model.StepOutcome{Name: stepLabel(step.Step), Kind: step.Kind}

		if !model.ShouldRunStep(step.If, failed) {
			so.Status = model.StatusSkipped
			out.Steps = append(out.Steps, so)
			continue
		}

		var result *model.StepResult
		if report != nil && i < len(report.Steps) {
			result = &report.Steps[i]
		}

		switch {
		case result == nil:
			so.Status = model.StatusFailure
			so.ExitCode = -1
			so.Messages = append(so.Messages, "no result reported")
		case result.ExitCode != 0:
			so.Status = model.StatusFailure
			so.ExitCode = result.ExitCode
		default:
			so.Status = model.StatusSuccess
		}
		if result != nil && result.Message != "" {
			so.Messages = append(so.Messages, result.Message)
		}

		if step.Kind == model.StepCoverageUpload && result != nil {
			if err := checkUpload(ctx, step, &so, files); err != nil {
				return nil, err
			}
		}

		if so.Status == model.StatusFailure {
			if step.ContinueOnError {
				so.Messages = append(so.Messages, "failure ignored by continue-on-error")
			} else {
				failed = true
			}
		}
		out.Steps = append(out.Steps, so)
	}

	if failed {
		out.Status = model.StatusFailure
	}
	return out, nil
}

// checkUpload applies the fail_ci_if_error contract of a coverage upload.
// With the flag, a missing report or a failed upload fails the step.
// Without it, both are warnings.
func checkUpload(ctx context.Context, step model.PlannedStep, so *model.StepOutcome, files interfaces.FileStore) error {
	failOnError := step.FailOnError()

	if so.Status == model.StatusFailure && !failOnError {
		so.Status = model.StatusSuccess
		so.Messages = append(so.Messages, fmt.Sprintf("warning: upload exited with %d, ignored without fail_ci_if_error", so.ExitCode))
	}

	if files == nil {
		return nil
	}
	for _, f := range step.ReportFiles() {
		ok, err := files.Exists(ctx, f)
		if err != nil {
			return goerr.Wrap(err, "failed to check coverage report", goerr.V("file", f))
		}
		if ok {
			continue
		}
		if failOnError {
			so.Status = model.StatusFailure
			so.Messages = append(so.Messages, fmt.Sprintf("coverage report %s not found", f))
		} else {
			so.Messages = append(so.Messages, fmt.Sprintf("warning: coverage report %s not found", f))
		}
	}
	return nil
}

func stepLabel(s model.Step) string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Uses != "":
		return s.Uses
	default:
		line, _, _ := strings.Cut(strings.TrimSpace(s.Run), "\n")
		return line
	}
}

// CheckCoverage resolves the coverage reports every cell uploads and checks
// them in files. Cobertura reports also yield their line rate.
func (w *Workflow) CheckCoverage(ctx context.Context, files interfaces.FileStore) ([]model.CoverageReport, error) {
	if files == nil {
		return nil, goerr.New("coverage directory is not configured", goerr.T(types.ErrTagInvalidArgument))
	}
	wf, err := w.doc.get()
	if err != nil {
		return nil, err
	}
	plans, err := wf.Resolve()
	if err != nil {
		return nil, err
	}

	var reports []model.CoverageReport
	for _, plan := range plans {
		for _, step := range plan.Steps {
			if step.Kind != model.StepCoverageUpload {
				continue
			}
			for _, f := range step.ReportFiles() {
				rep := model.CoverageReport{
					Job:      plan.Job,
					Cell:     plan.Cell,
					Path:     f,
					Required: step.FailOnError(),
				}
				rep.Present, err = files.Exists(ctx, f)
				if err != nil {
					return nil, goerr.Wrap(err, "failed to check coverage report", goerr.V("file", f))
				}
				if rep.Present {
					rate, err := readLineRate(ctx, files, f)
					if err != nil {
						ctxlog.From(ctx).Warn("unreadable coverage report", "file", f, "error", err)
					}
					rep.LineRate = rate
				}
				reports = append(reports, rep)
			}
		}
	}
	return reports, nil
}

// readLineRate returns the line-rate attribute of a Cobertura report's root
// element, or nil for other XML documents.
func readLineRate(ctx context.Context, files interfaces.FileStore, path string) (*float64, error) {
	r, err := files.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, goerr.Wrap(err, "failed to decode coverage XML", goerr.T(types.ErrTagParse))
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "coverage" {
			return nil, nil
		}
		for _, attr := range start.Attr {
			if attr.Name.Local != "line-rate" {
				continue
			}
			rate, err := strconv.ParseFloat(attr.Value, 64)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid line-rate",
					goerr.V("value", attr.Value),
					goerr.T(types.ErrTagParse))
			}
			return &rate, nil
		}
		return nil, nil
	}
}
