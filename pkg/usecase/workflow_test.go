package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/infra/source"
	"github.com/m-mizutani/annodb/pkg/metrics"
	"github.com/m-mizutani/annodb/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var pythonVersions = []string{"3.8", "3.9", "3.10"}

func newWorkflow(t *testing.T, opts ...usecase.WorkflowOption) *usecase.Workflow {
	t.Helper()
	uc := usecase.NewWorkflow(source.New(), "testdata/testing_develop.yml", opts...)
	gt.NoError(t, uc.Load(context.Background())).Required()
	return uc
}

// passingReports reports exit 0 for all five steps of all nine cells.
func passingReports() []model.CellReport {
	reports := make([]model.CellReport, 0, 9)
	for i := range 9 {
		reports = append(reports, model.CellReport{
			Job:   "tests",
			Cell:  i,
			Steps: make([]model.StepResult, 5),
		})
	}
	return reports
}

// allCoverage serves every junit report of the matrix
func allCoverage() *mockFileStore {
	files := map[string]string{}
	for _, v := range pythonVersions {
		files[fmt.Sprintf("junit-%s.xml", v)] = "<testsuites/>"
	}
	return &mockFileStore{files: files}
}

func TestWorkflow_Jobs(t *testing.T) {
	uc := newWorkflow(t)
	jobs, err := uc.Jobs(context.Background())
	gt.NoError(t, err)
	gt.A(t, jobs).Length(1)
	gt.A(t, jobs[0].Cells).Length(9)

	seen := map[string]bool{}
	for _, c := range jobs[0].Cells {
		os, _ := c.Get("os")
		v, _ := c.Get("python-version")
		seen[os+"/"+v] = true
	}
	for _, os := range []string{"ubuntu-latest", "macos-latest", "windows-latest"} {
		for _, v := range pythonVersions {
			gt.True(t, seen[os+"/"+v])
		}
	}
}

func TestWorkflow_Trigger(t *testing.T) {
	ctx := context.Background()
	uc := newWorkflow(t)

	tests := []struct {
		name      string
		event     model.TriggerEvent
		triggered bool
	}{
		{name: "push develop", event: model.TriggerEvent{Name: "push", Ref: "refs/heads/develop"}, triggered: true},
		{name: "push master", event: model.TriggerEvent{Name: "push", Ref: "refs/heads/master"}, triggered: true},
		{name: "push feature", event: model.TriggerEvent{Name: "push", Ref: "refs/heads/feature/x"}, triggered: false},
		{name: "pr into develop", event: model.TriggerEvent{Name: "pull_request", Action: "opened", BaseRef: "develop"}, triggered: true},
		{name: "pr into main", event: model.TriggerEvent{Name: "pull_request", Action: "opened", BaseRef: "main"}, triggered: false},
		{name: "tag push", event: model.TriggerEvent{Name: "push", Ref: "refs/tags/2022.8.24a1"}, triggered: false},
		{name: "release event", event: model.TriggerEvent{Name: "release"}, triggered: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := uc.Trigger(ctx, tt.event)
			gt.NoError(t, err).Required()
			gt.Value(t, plan.Decision.Triggered).Equal(tt.triggered)
			if tt.triggered {
				gt.A(t, plan.Cells).Length(9)
			} else {
				gt.A(t, plan.Cells).Length(0)
			}
		})
	}

	_, err := uc.Trigger(ctx, model.TriggerEvent{})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagInvalidArgument))
}

func TestWorkflow_Evaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("all cells pass", func(t *testing.T) {
		m := metrics.New()
		uc := newWorkflow(t, usecase.WithWorkflowMetrics(m), usecase.WithEvalConcurrency(3))
		out, err := uc.Evaluate(ctx, passingReports(), allCoverage())
		gt.NoError(t, err).Required()
		gt.Value(t, out.Status).Equal(model.StatusSuccess)
		gt.A(t, out.Cells).Length(9)
		for i, c := range out.Cells {
			gt.Number(t, c.Cell.Index).Equal(i)
			gt.Value(t, c.Status).Equal(model.StatusSuccess)
		}
		expected := `
# HELP annodb_matrix_cells_evaluated_total Matrix cells evaluated, by job and outcome
# TYPE annodb_matrix_cells_evaluated_total counter
annodb_matrix_cells_evaluated_total{job="tests",status="success"} 9
`
		gt.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "annodb_matrix_cells_evaluated_total"))
	})

	t.Run("failing test session fails the cell and skips the upload", func(t *testing.T) {
		uc := newWorkflow(t)
		reports := passingReports()
		reports[4].Steps = []model.StepResult{{}, {}, {}, {ExitCode: 1, Message: "2 tests failed"}}

		out, err := uc.Evaluate(ctx, reports, allCoverage())
		gt.NoError(t, err).Required()
		gt.Value(t, out.Status).Equal(model.StatusFailure)

		cell := out.Cells[4]
		gt.Value(t, cell.Status).Equal(model.StatusFailure)
		gt.Value(t, cell.Steps[3].Kind).Equal(model.StepTestSession)
		gt.Value(t, cell.Steps[3].Status).Equal(model.StatusFailure)
		gt.Value(t, cell.Steps[4].Kind).Equal(model.StepCoverageUpload)
		gt.Value(t, cell.Steps[4].Status).Equal(model.StatusSkipped)

		gt.A(t, out.Failed()).Length(1)
		for i, c := range out.Cells {
			if i != 4 {
				gt.Value(t, c.Status).Equal(model.StatusSuccess)
			}
		}
	})

	t.Run("missing coverage report fails the cell", func(t *testing.T) {
		uc := newWorkflow(t)
		files := allCoverage()
		delete(files.files, "junit-3.9.xml")

		out, err := uc.Evaluate(ctx, passingReports(), files)
		gt.NoError(t, err).Required()
		gt.Value(t, out.Status).Equal(model.StatusFailure)

		for _, c := range out.Cells {
			v, _ := c.Cell.Get("python-version")
			if v == "3.9" {
				gt.Value(t, c.Status).Equal(model.StatusFailure)
				gt.Value(t, c.Steps[4].Status).Equal(model.StatusFailure)
				gt.A(t, c.Steps[4].Messages).Equal([]string{"coverage report ./junit-3.9.xml not found"})
			} else {
				gt.Value(t, c.Status).Equal(model.StatusSuccess)
			}
		}
		gt.A(t, out.Failed()).Length(3)
	})

	t.Run("missing results count as failures", func(t *testing.T) {
		uc := newWorkflow(t)
		out, err := uc.Evaluate(ctx, nil, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, out.Status).Equal(model.StatusFailure)
		gt.Value(t, out.Cells[0].Steps[0].Status).Equal(model.StatusFailure)
		gt.Number(t, out.Cells[0].Steps[0].ExitCode).Equal(-1)
		gt.Value(t, out.Cells[0].Steps[1].Status).Equal(model.StatusSkipped)
	})

	t.Run("invalid reports", func(t *testing.T) {
		uc := newWorkflow(t)
		tests := []struct {
			name    string
			reports []model.CellReport
		}{
			{name: "unknown job", reports: []model.CellReport{{Job: "lint", Cell: 0}}},
			{name: "unknown cell", reports: []model.CellReport{{Job: "tests", Cell: 9}}},
			{name: "too many results", reports: []model.CellReport{{Job: "tests", Cell: 0, Steps: make([]model.StepResult, 6)}}},
			{name: "duplicate", reports: []model.CellReport{{Job: "tests", Cell: 1}, {Job: "tests", Cell: 1}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := uc.Evaluate(ctx, tt.reports, nil)
				gt.Error(t, err)
				gt.True(t, goerr.HasTag(err, types.ErrTagInvalidArgument))
			})
		}
	})

	t.Run("file store errors abort evaluation", func(t *testing.T) {
		uc := newWorkflow(t)
		files := &mockFileStore{existsFunc: func(ctx context.Context, path string) (bool, error) {
			return false, errors.New("permission denied")
		}}
		_, err := uc.Evaluate(ctx, passingReports(), files)
		gt.Error(t, err)
	})
}

const evalWorkflow = `
on: push
jobs:
  tests:
    continue-on-error: true
    steps:
      - run: nox -s test
        continue-on-error: true
      - uses: codecov/codecov-action@v3
        with:
          files: coverage.xml
      - run: ./notify-failure
        if: ${{ failure() }}
      - run: ./cleanup
        if: always()
`

func TestWorkflow_EvaluateStepRules(t *testing.T) {
	ctx := context.Background()
	files := &mockFileStore{files: map[string]string{"wf.yml": evalWorkflow}}
	uc := usecase.NewWorkflow(files, "wf.yml")
	gt.NoError(t, uc.Load(ctx)).Required()

	t.Run("continue-on-error and upload warnings", func(t *testing.T) {
		reports := []model.CellReport{{Job: "tests", Cell: 0, Steps: []model.StepResult{
			{ExitCode: 1}, {ExitCode: 2}, {}, {},
		}}}
		out, err := uc.Evaluate(ctx, reports, &mockFileStore{files: map[string]string{}})
		gt.NoError(t, err).Required()

		cell := out.Cells[0]
		gt.Value(t, cell.Status).Equal(model.StatusSuccess)
		gt.Value(t, cell.Steps[0].Status).Equal(model.StatusFailure)
		gt.A(t, cell.Steps[0].Messages).Equal([]string{"failure ignored by continue-on-error"})
		gt.Value(t, cell.Steps[1].Status).Equal(model.StatusSuccess)
		gt.A(t, cell.Steps[1].Messages).Equal([]string{
			"warning: upload exited with 2, ignored without fail_ci_if_error",
			"warning: coverage report coverage.xml not found",
		})
		gt.Value(t, cell.Steps[2].Status).Equal(model.StatusSkipped)
		gt.Value(t, cell.Steps[3].Status).Equal(model.StatusSuccess)
	})

	t.Run("job continue-on-error keeps the run green", func(t *testing.T) {
		reports := []model.CellReport{{Job: "tests", Cell: 0, Steps: []model.StepResult{
			{}, {}, {}, {ExitCode: 1},
		}}}
		out, err := uc.Evaluate(ctx, reports, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, out.Cells[0].Status).Equal(model.StatusFailure)
		gt.True(t, out.Cells[0].ContinueOnError)
		gt.Value(t, out.Status).Equal(model.StatusSuccess)
	})
}

const guardedUploadWorkflow = `
on: push
jobs:
  tests:
    steps:
      - run: nox -s test
      - uses: codecov/codecov-action@v3
        if: ${{ !cancelled() }}
        with:
          fail_ci_if_error: true
          files: ./cov.xml
      - run: ./publish-docs
        if: ${{ !failure() }}
`

func TestWorkflow_EvaluateNegatedConditions(t *testing.T) {
	ctx := context.Background()
	files := &mockFileStore{files: map[string]string{"wf.yml": guardedUploadWorkflow}}
	uc := usecase.NewWorkflow(files, "wf.yml")
	gt.NoError(t, uc.Load(ctx)).Required()

	testCases := map[string]struct {
		steps      []model.StepResult
		coverage   map[string]string
		wantCell   model.Status
		wantSteps  []model.Status
		wantUpload []string
	}{
		"all steps pass with the report present": {
			steps:     []model.StepResult{{}, {}, {}},
			coverage:  map[string]string{"cov.xml": "<coverage/>"},
			wantCell:  model.StatusSuccess,
			wantSteps: []model.Status{model.StatusSuccess, model.StatusSuccess, model.StatusSuccess},
		},
		"missing required report fails the cell": {
			steps:      []model.StepResult{{}, {}, {}},
			coverage:   map[string]string{},
			wantCell:   model.StatusFailure,
			wantSteps:  []model.Status{model.StatusSuccess, model.StatusFailure, model.StatusSkipped},
			wantUpload: []string{"coverage report ./cov.xml not found"},
		},
		"upload still runs after a failed test": {
			steps:     []model.StepResult{{ExitCode: 1}, {}, {}},
			coverage:  map[string]string{"cov.xml": "<coverage/>"},
			wantCell:  model.StatusFailure,
			wantSteps: []model.Status{model.StatusFailure, model.StatusSuccess, model.StatusSkipped},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			reports := []model.CellReport{{Job: "tests", Cell: 0, Steps: tc.steps}}
			out, err := uc.Evaluate(ctx, reports, &mockFileStore{files: tc.coverage})
			gt.NoError(t, err).Required()

			cell := out.Cells[0]
			gt.Value(t, cell.Status).Equal(tc.wantCell)
			gt.Value(t, out.Status).Equal(tc.wantCell)
			gt.A(t, cell.Steps).Length(len(tc.wantSteps))
			for i, want := range tc.wantSteps {
				gt.Value(t, cell.Steps[i].Status).Equal(want)
			}
			gt.A(t, cell.Steps[1].Messages).Equal(tc.wantUpload)
		})
	}
}

func TestWorkflow_CheckCoverage(t *testing.T) {
	ctx := context.Background()
	uc := newWorkflow(t)

	files := &mockFileStore{files: map[string]string{
		"junit-3.8.xml":  `<?xml version="1.0" ?><coverage line-rate="0.875" branch-rate="0.5"></coverage>`,
		"junit-3.10.xml": `<testsuites><testsuite name="pytest"/></testsuites>`,
	}}

	reports, err := uc.CheckCoverage(ctx, files)
	gt.NoError(t, err).Required()
	gt.A(t, reports).Length(9)

	for _, r := range reports {
		gt.True(t, r.Required)
		v, _ := r.Cell.Get("python-version")
		gt.Value(t, r.Path).Equal("./junit-" + v + ".xml")
		switch v {
		case "3.8":
			gt.True(t, r.Present)
			gt.Value(t, r.LineRate).NotNil()
			gt.Value(t, *r.LineRate).Equal(0.875)
		case "3.9":
			gt.False(t, r.Present)
		case "3.10":
			gt.True(t, r.Present)
			gt.True(t, r.LineRate == nil)
		}
	}

	_, err = uc.CheckCoverage(ctx, nil)
	gt.Error(t, err)
}
