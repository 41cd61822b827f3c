package model

// Status is the result of a step, cell or run
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// StepResult is what a runner reported for one step
type StepResult struct {
	ExitCode int    `json:"exit_code"`
	Message  string `json:"message,omitempty"`
}

// CellReport carries the reported step results of one cell, in step order.
type CellReport struct {
	Job   string       `json:"job"`
	Cell  int          `json:"cell"`
	Steps []StepResult `json:"steps"`
}

// StepOutcome is the evaluated status of one planned step
type StepOutcome struct {
	Name     string   `json:"name"`
	Kind     StepKind `json:"kind"`
	Status   Status   `json:"status"`
	ExitCode int      `json:"exit_code"`
	Messages []string `json:"messages,omitempty"`
}

// CellOutcome is the evaluated status of one matrix cell
type CellOutcome struct {
	Job             string        `json:"job"`
	Name            string        `json:"name"`
	Cell            Cell          `json:"cell"`
	Status          Status        `json:"status"`
	ContinueOnError bool          `json:"continue_on_error,omitempty"`
	Steps           []StepOutcome `json:"steps"`
}

// RunOutcome aggregates cell outcomes in matrix order
type RunOutcome struct {
	Status Status        `json:"status"`
	Cells  []CellOutcome `json:"cells"`
}

// Failed returns the cells that failed
func (r *RunOutcome) Failed() []CellOutcome {
	var failed []CellOutcome
	for _, c := range r.Cells {
		if c.Status == StatusFailure {
			failed = append(failed, c)
		}
	}
	return failed
}

// CoverageReport describes the coverage file expected for one cell.
type CoverageReport struct {
	Job      string   `json:"job"`
	Cell     Cell     `json:"cell"`
	Path     string   `json:"path"`
	Present  bool     `json:"present"`
	Required bool     `json:"required"`
	LineRate *float64 `json:"line_rate,omitempty"`
}
