package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/utils/refglob"
	"github.com/m-mizutani/goerr/v2"
)

// Workflow is a CI workflow declaration
type Workflow struct {
	Name     string    `json:"name"`
	Triggers []Trigger `json:"triggers"`
	Jobs     []*Job    `json:"jobs"`
}

// Trigger holds the filters of one event listed under "on".
type Trigger struct {
	Event          string   `json:"event"`
	Types          []string `json:"types,omitempty"`
	Branches       []string `json:"branches,omitempty"`
	BranchesIgnore []string `json:"branches_ignore,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	TagsIgnore     []string `json:"tags_ignore,omitempty"`
}

// Job is one entry of "jobs"
type Job struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	RunsOn          string   `json:"runs_on"`
	Matrix          Matrix   `json:"matrix"`
	FailFast        bool     `json:"fail_fast"`
	ContinueOnError bool     `json:"continue_on_error"`
	Needs           []string `json:"needs,omitempty"`
	Steps           []Step   `json:"steps"`
}

// Step is one job step. With keeps declaration order in WithKeys.
type Step struct {
	ID              string            `json:"id,omitempty"`
	Name            string            `json:"name,omitempty"`
	Uses            string            `json:"uses,omitempty"`
	Run             string            `json:"run,omitempty"`
	If              string            `json:"if,omitempty"`
	With            map[string]string `json:"with,omitempty"`
	WithKeys        []string          `json:"-"`
	ContinueOnError bool              `json:"continue_on_error,omitempty"`
}

// StepKind classifies what a step does in the test pipeline
type StepKind string

const (
	StepCheckout         StepKind = "checkout"
	StepSetupInterpreter StepKind = "setup-interpreter"
	StepInstall          StepKind = "install"
	StepTestSession      StepKind = "test-session"
	StepCoverageUpload   StepKind = "coverage-upload"
	StepOther            StepKind = "other"
)

var testSessionPattern = regexp.MustCompile(`(^|[\s/])(nox|tox|pytest|go test|make test|npm test)(\s|$)`)

// Kind classifies the step from its action reference and command.
func (s Step) Kind() StepKind {
	uses := strings.ToLower(s.Uses)
	run := strings.ToLower(s.Run)

	switch {
	case strings.HasPrefix(uses, "actions/checkout"):
		return StepCheckout
	case strings.HasPrefix(uses, "actions/setup-"):
		return StepSetupInterpreter
	case strings.Contains(uses, "codecov/"), strings.Contains(uses, "coveralls"):
		return StepCoverageUpload
	case strings.Contains(run, "install"):
		return StepInstall
	case testSessionPattern.MatchString(run):
		return StepTestSession
	}
	return StepOther
}

// FailOnError reports whether the step is configured to fail the job when
// its upload fails.
func (s Step) FailOnError() bool {
	v := strings.ToLower(strings.TrimSpace(s.With["fail_ci_if_error"]))
	return v == "true" || v == "yes"
}

// ReportFiles lists the report paths named in "files" or "file".
func (s Step) ReportFiles() []string {
	var files []string
	for _, key := range []string{"files", "file"} {
		for _, f := range strings.Split(s.With[key], ",") {
			if f = strings.TrimSpace(f); f != "" {
				files = append(files, f)
			}
		}
	}
	return files
}

// MatrixAxis is a named list of values
type MatrixAxis struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// MatrixEntry is an include or exclude object. Keys keeps declaration order.
type MatrixEntry struct {
	Keys   []string          `json:"keys"`
	Values map[string]string `json:"values"`
}

// Matrix is a job strategy matrix
type Matrix struct {
	Axes    []MatrixAxis  `json:"axes"`
	Include []MatrixEntry `json:"include,omitempty"`
	Exclude []MatrixEntry `json:"exclude,omitempty"`
}

// Cell is one combination of matrix values
type Cell struct {
	Index  int               `json:"index"`
	Keys   []string          `json:"keys"`
	Values map[string]string `json:"values"`
}

// Get returns the value of a matrix key
func (c Cell) Get(key string) (string, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// Label renders the cell as "k1=v1, k2=v2" in key order
func (c Cell) Label() string {
	parts := make([]string, 0, len(c.Keys))
	for _, k := range c.Keys {
		parts = append(parts, k+"="+c.Values[k])
	}
	return strings.Join(parts, ", ")
}

func (c *Cell) set(key, value string) {
	if _, ok := c.Values[key]; !ok {
		c.Keys = append(c.Keys, key)
	}
	c.Values[key] = value
}

func (c Cell) clone() Cell {
	n := Cell{Keys: append([]string(nil), c.Keys...), Values: make(map[string]string, len(c.Values))}
	for k, v := range c.Values {
		n.Values[k] = v
	}
	return n
}

// Expand computes the matrix cells. The cartesian product of the axes is
// taken with the first axis varying slowest, then exclude removes matching
// combinations and include extends or appends cells.
func (m Matrix) Expand() ([]Cell, error) {
	for _, axis := range m.Axes {
		if len(axis.Values) == 0 {
			return nil, goerr.New("matrix axis has no values",
				goerr.V("axis", axis.Name),
				goerr.T(types.ErrTagInvalidArgument))
		}
	}

	if len(m.Axes) == 0 {
		if len(m.Include) == 0 {
			return []Cell{{Index: 0, Values: map[string]string{}}}, nil
		}
		cells := make([]Cell, 0, len(m.Include))
		for i, inc := range m.Include {
			c := Cell{Index: i, Values: map[string]string{}}
			for _, k := range inc.Keys {
				c.set(k, inc.Values[k])
			}
			cells = append(cells, c)
		}
		return cells, nil
	}

	cells := []Cell{{Values: map[string]string{}}}
	for _, axis := range m.Axes {
		next := make([]Cell, 0, len(cells)*len(axis.Values))
		for _, c := range cells {
			for _, v := range axis.Values {
				n := c.clone()
				n.set(axis.Name, v)
				next = append(next, n)
			}
		}
		cells = next
	}

	if len(m.Exclude) > 0 {
		kept := cells[:0]
		for _, c := range cells {
			if !m.excluded(c) {
				kept = append(kept, c)
			}
		}
		cells = kept
	}

	axisNames := make(map[string]struct{}, len(m.Axes))
	for _, axis := range m.Axes {
		axisNames[axis.Name] = struct{}{}
	}
	original := len(cells)

	for _, inc := range m.Include {
		matched := false
		for i := 0; i < original; i++ {
			if !includeMatches(cells[i], inc, axisNames) {
				continue
			}
			matched = true
			for _, k := range inc.Keys {
				if _, isAxis := axisNames[k]; isAxis {
					continue
				}
				cells[i].set(k, inc.Values[k])
			}
		}
		if !matched {
			c := Cell{Values: map[string]string{}}
			for _, k := range inc.Keys {
				c.set(k, inc.Values[k])
			}
			cells = append(cells, c)
		}
	}

	for i := range cells {
		cells[i].Index = i
	}
	return cells, nil
}

func (m Matrix) excluded(c Cell) bool {
	for _, ex := range m.Exclude {
		match := len(ex.Keys) > 0
		for _, k := range ex.Keys {
			if v, ok := c.Values[k]; !ok || v != ex.Values[k] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// includeMatches reports whether inc can extend c without overwriting any
// original axis value.
func includeMatches(c Cell, inc MatrixEntry, axes map[string]struct{}) bool {
	for _, k := range inc.Keys {
		if _, isAxis := axes[k]; !isAxis {
			continue
		}
		if c.Values[k] != inc.Values[k] {
			return false
		}
	}
	return true
}

// TriggerEvent is a repository event to test against workflow triggers.
type TriggerEvent struct {
	Name       string `json:"name"`
	Action     string `json:"action,omitempty"`
	Ref        string `json:"ref,omitempty"`
	BaseRef    string `json:"base_ref,omitempty"`
	Repository string `json:"repository,omitempty"`
}

// TriggerDecision explains whether an event triggers a workflow
type TriggerDecision struct {
	Triggered bool   `json:"triggered"`
	Reason    string `json:"reason"`
}

var defaultPullRequestTypes = []string{"opened", "synchronize", "reopened"}

// Evaluate decides whether the event triggers the workflow.
func (w *Workflow) Evaluate(ev TriggerEvent) TriggerDecision {
	var trigger *Trigger
	for i := range w.Triggers {
		if w.Triggers[i].Event == ev.Name {
			trigger = &w.Triggers[i]
			break
		}
	}
	if trigger == nil {
		return TriggerDecision{Reason: fmt.Sprintf("event %q is not configured", ev.Name)}
	}

	if ev.Name == "pull_request" || ev.Name == "pull_request_target" {
		allowed := trigger.Types
		if len(allowed) == 0 {
			allowed = defaultPullRequestTypes
		}
		if ev.Action != "" && !contains(allowed, ev.Action) {
			return TriggerDecision{Reason: fmt.Sprintf("action %q is not in %v", ev.Action, allowed)}
		}
		branch := strings.TrimPrefix(ev.BaseRef, "refs/heads/")
		return matchBranch(trigger, branch)
	}

	if tag, ok := strings.CutPrefix(ev.Ref, "refs/tags/"); ok {
		return matchTag(trigger, tag)
	}

	branch := strings.TrimPrefix(ev.Ref, "refs/heads/")
	if (len(trigger.Tags) > 0 || len(trigger.TagsIgnore) > 0) &&
		len(trigger.Branches) == 0 && len(trigger.BranchesIgnore) == 0 {
		return TriggerDecision{Reason: "only tag filters are configured"}
	}
	return matchBranch(trigger, branch)
}

func matchBranch(t *Trigger, branch string) TriggerDecision {
	if len(t.Branches) > 0 && !refglob.MatchAny(t.Branches, branch) {
		return TriggerDecision{Reason: fmt.Sprintf("branch %q does not match %v", branch, t.Branches)}
	}
	if len(t.BranchesIgnore) > 0 && refglob.MatchAny(t.BranchesIgnore, branch) {
		return TriggerDecision{Reason: fmt.Sprintf("branch %q is ignored", branch)}
	}
	return TriggerDecision{Triggered: true, Reason: fmt.Sprintf("%s on branch %q", t.Event, branch)}
}

func matchTag(t *Trigger, tag string) TriggerDecision {
	if len(t.Tags) == 0 && len(t.TagsIgnore) == 0 {
		if len(t.Branches) > 0 || len(t.BranchesIgnore) > 0 {
			return TriggerDecision{Reason: "only branch filters are configured"}
		}
		return TriggerDecision{Triggered: true, Reason: fmt.Sprintf("%s of tag %q", t.Event, tag)}
	}
	if len(t.Tags) > 0 && !refglob.MatchAny(t.Tags, tag) {
		return TriggerDecision{Reason: fmt.Sprintf("tag %q does not match %v", tag, t.Tags)}
	}
	if len(t.TagsIgnore) > 0 && refglob.MatchAny(t.TagsIgnore, tag) {
		return TriggerDecision{Reason: fmt.Sprintf("tag %q is ignored", tag)}
	}
	return TriggerDecision{Triggered: true, Reason: fmt.Sprintf("%s of tag %q", t.Event, tag)}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

var expressionPattern = regexp.MustCompile(`\$\{\{\s*(.*?)\s*\}\}`)

// Interpolate substitutes ${{ matrix.<key> }} expressions with cell values.
// Other expressions are left verbatim.
func Interpolate(s string, cell Cell) string {
	return expressionPattern.ReplaceAllStringFunc(s, func(expr string) string {
		inner := expressionPattern.FindStringSubmatch(expr)[1]
		key, ok := strings.CutPrefix(inner, "matrix.")
		if !ok {
			return expr
		}
		if v, found := cell.Values[key]; found {
			return v
		}
		return expr
	})
}

// PlannedStep is a step resolved for one cell
type PlannedStep struct {
	Index int      `json:"index"`
	Kind  StepKind `json:"kind"`
	Step
}

// CellPlan is the resolved step sequence of one matrix cell
type CellPlan struct {
	Job    string        `json:"job"`
	Name   string        `json:"name"`
	RunsOn string        `json:"runs_on"`
	Cell   Cell          `json:"cell"`
	Steps  []PlannedStep `json:"steps"`
}

// Plan is the set of cells a triggering event starts
type Plan struct {
	Event    TriggerEvent    `json:"event"`
	Decision TriggerDecision `json:"decision"`
	Cells    []CellPlan      `json:"cells"`
}

// JobOrder returns the jobs sorted so that every job follows the jobs it
// needs. Independent jobs keep declaration order.
func (w *Workflow) JobOrder() ([]*Job, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	position := make(map[string]int, len(w.Jobs))
	for i, job := range w.Jobs {
		if err := g.AddVertex(job.ID); err != nil {
			return nil, goerr.Wrap(err, "duplicate job", goerr.V("job", job.ID))
		}
		position[job.ID] = i
	}

	for _, job := range w.Jobs {
		for _, need := range job.Needs {
			if _, ok := position[need]; !ok {
				return nil, goerr.New("job needs an undefined job",
					goerr.V("job", job.ID),
					goerr.V("needs", need),
					goerr.T(types.ErrTagInvalidArgument))
			}
			if err := g.AddEdge(need, job.ID); err != nil {
				if errors.Is(err, graph.ErrEdgeAlreadyExists) {
					continue
				}
				return nil, goerr.Wrap(err, "job dependency cycle",
					goerr.V("job", job.ID),
					goerr.V("needs", need),
					goerr.T(types.ErrTagInvalidArgument))
			}
		}
	}

	ids, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return position[a] < position[b]
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to sort jobs")
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, w.Jobs[position[id]])
	}
	return jobs, nil
}

// Resolve expands every job into per-cell plans with interpolated steps.
// Jobs are resolved in dependency order.
func (w *Workflow) Resolve() ([]CellPlan, error) {
	jobs, err := w.JobOrder()
	if err != nil {
		return nil, err
	}

	var plans []CellPlan
	for _, job := range jobs {
		cells, err := job.Matrix.Expand()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to expand matrix", goerr.V("job", job.ID))
		}

		for _, cell := range cells {
			plan := CellPlan{
				Job:    job.ID,
				Name:   Interpolate(job.Name, cell),
				RunsOn: Interpolate(job.RunsOn, cell),
				Cell:   cell,
			}
			if plan.Name == "" {
				plan.Name = job.ID
			}
			for i, step := range job.Steps {
				resolved := step
				resolved.Name = Interpolate(step.Name, cell)
				resolved.Run = Interpolate(step.Run, cell)
				if len(step.With) > 0 {
					resolved.With = make(map[string]string, len(step.With))
					for k, v := range step.With {
						resolved.With[k] = Interpolate(v, cell)
					}
				}
				plan.Steps = append(plan.Steps, PlannedStep{Index: i, Kind: resolved.Kind(), Step: resolved})
			}
			plans = append(plans, plan)
		}
	}
	return plans, nil
}

// Plan evaluates the event and, when it triggers, resolves every cell.
func (w *Workflow) Plan(ev TriggerEvent) (*Plan, error) {
	plan := &Plan{Event: ev, Decision: w.Evaluate(ev)}
	if !plan.Decision.Triggered {
		return plan, nil
	}

	cells, err := w.Resolve()
	if err != nil {
		return nil, err
	}
	plan.Cells = cells
	return plan, nil
}

// Job returns the job with the given ID
func (w *Workflow) Job(id string) (*Job, bool) {
	for _, j := range w.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return nil, false
}

// JobCells is a job with its expanded matrix
type JobCells struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	RunsOn string   `json:"runs_on"`
	Needs  []string `json:"needs,omitempty"`
	Cells  []Cell   `json:"cells"`
}

// ExpandJobs expands the matrix of every job in dependency order.
func (w *Workflow) ExpandJobs() ([]JobCells, error) {
	jobs, err := w.JobOrder()
	if err != nil {
		return nil, err
	}

	result := make([]JobCells, 0, len(jobs))
	for _, job := range jobs {
		cells, err := job.Matrix.Expand()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to expand matrix", goerr.V("job", job.ID))
		}
		result = append(result, JobCells{
			ID:     job.ID,
			Name:   job.Name,
			RunsOn: job.RunsOn,
			Needs:  job.Needs,
			Cells:  cells,
		})
	}
	return result, nil
}
