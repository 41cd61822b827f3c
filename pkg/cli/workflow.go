package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/annodb/pkg/cli/config"
	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/infra/source"
	"github.com/m-mizutani/annodb/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// defaultWorkflowPath is read from the repository when --workflow-path is
// not given
const defaultWorkflowPath = ".github/workflows/testing_develop.yml"

func loadWorkflow(ctx context.Context, c *cli.Command) (*usecase.Workflow, error) {
	path := c.Args().First()
	if path == "" {
		return nil, goerr.New("workflow file is required", goerr.T(types.ErrTagInvalidArgument))
	}
	uc := usecase.NewWorkflow(source.New(), path)
	if err := uc.Load(ctx); err != nil {
		return nil, err
	}
	return uc, nil
}

func cmdMatrix() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:      "matrix",
		Usage:     "Print the expanded matrix cells of every job",
		ArgsUsage: "WORKFLOW.yml",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, err := loadWorkflow(ctx, c)
			if err != nil {
				return err
			}
			jobs, err := uc.Jobs(ctx)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if asJSON {
				return printJSON(w, jobs)
			}
			for _, job := range jobs {
				title := job.ID
				if len(job.Needs) > 0 {
					title += dimColor.Sprintf(" (needs %s)", strings.Join(job.Needs, ", "))
				}
				fmt.Fprintf(w, "%s: %d cells\n", headerColor.Sprint(title), len(job.Cells))
				for _, cell := range job.Cells {
					fmt.Fprintf(w, "  [%d] %s\n", cell.Index, cell.Label())
				}
			}
			return nil
		},
	}
}

func cmdTrigger() *cli.Command {
	var (
		event  string
		action string
		branch string
		tag    string
		strict bool
		asJSON bool
	)

	return &cli.Command{
		Name:      "trigger",
		Usage:     "Decide whether an event triggers the workflow",
		ArgsUsage: "WORKFLOW.yml",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "event", Aliases: []string{"e"}, Usage: "Event name (push, pull_request, ...)", Value: "push", Destination: &event},
			&cli.StringFlag{Name: "action", Usage: "pull_request action", Value: "opened", Destination: &action},
			&cli.StringFlag{Name: "branch", Aliases: []string{"b"}, Usage: "Pushed branch, or the base branch of a pull request", Destination: &branch},
			&cli.StringFlag{Name: "tag", Usage: "Pushed tag", Destination: &tag},
			&cli.BoolFlag{Name: "strict", Usage: "Exit non-zero when the event does not trigger the workflow", Destination: &strict},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, err := loadWorkflow(ctx, c)
			if err != nil {
				return err
			}

			ev := model.TriggerEvent{Name: event}
			switch {
			case event == "pull_request" || event == "pull_request_target":
				ev.Action = action
				ev.BaseRef = branch
			case tag != "":
				ev.Ref = "refs/tags/" + tag
			default:
				ev.Ref = "refs/heads/" + branch
			}

			plan, err := uc.Trigger(ctx, ev)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if asJSON {
				if err := printJSON(w, plan); err != nil {
					return err
				}
			} else if plan.Decision.Triggered {
				fmt.Fprintf(w, "%s %s (%d cells)\n", okColor.Sprint("triggered:"), plan.Decision.Reason, len(plan.Cells))
			} else {
				fmt.Fprintf(w, "%s %s\n", dimColor.Sprint("not triggered:"), plan.Decision.Reason)
			}

			if strict && !plan.Decision.Triggered {
				return cli.Exit("workflow is not triggered", 2)
			}
			return nil
		},
	}
}

func cmdEvaluate() *cli.Command {
	var (
		results     string
		coverageDir string
		asJSON      bool
	)

	return &cli.Command{
		Name:      "evaluate",
		Usage:     "Compute cell outcomes from reported step results",
		ArgsUsage: "WORKFLOW.yml",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "results", Usage: "JSON file with a list of {job, cell, steps:[{exit_code}]} reports", Required: true, Destination: &results},
			&cli.StringFlag{Name: "coverage-dir", Usage: "Directory holding coverage reports (checks are skipped when empty)", Destination: &coverageDir},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, err := loadWorkflow(ctx, c)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(results)
			if err != nil {
				return goerr.Wrap(err, "failed to read results", goerr.V("path", results))
			}
			reports, err := decodeReports(data)
			if err != nil {
				return goerr.Wrap(err, "invalid results file", goerr.V("path", results))
			}

			var files interfaces.FileStore
			if coverageDir != "" {
				files = source.New(source.WithRoot(coverageDir))
			}
			outcome, err := uc.Evaluate(ctx, reports, files)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if asJSON {
				if err := printJSON(w, outcome); err != nil {
					return err
				}
			} else {
				for _, cell := range outcome.Cells {
					fmt.Fprintf(w, "%s %s\n", statusColor(cell.Status).Sprintf("%-8s", cell.Status), cell.Name)
					for _, step := range cell.Steps {
						if step.Status == model.StatusSuccess && len(step.Messages) == 0 {
							continue
						}
						fmt.Fprintf(w, "    %s %s", statusColor(step.Status).Sprintf("%-8s", step.Status), step.Name)
						if len(step.Messages) > 0 {
							fmt.Fprintf(w, " %s", dimColor.Sprint(strings.Join(step.Messages, "; ")))
						}
						fmt.Fprintln(w)
					}
				}
				fmt.Fprintf(w, "run: %s\n", statusColor(outcome.Status).Sprint(outcome.Status))
			}

			if outcome.Status == model.StatusFailure {
				return cli.Exit(fmt.Sprintf("%d cells failed", len(outcome.Failed())), 1)
			}
			return nil
		},
	}
}

// decodeReports accepts either a bare list of reports or the
// {"reports": [...]} body the HTTP API takes.
func decodeReports(data []byte) ([]model.CellReport, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reports []model.CellReport
		if err := json.Unmarshal(trimmed, &reports); err != nil {
			return nil, goerr.Wrap(err, "failed to decode reports", goerr.T(types.ErrTagParse))
		}
		return reports, nil
	}

	var body struct {
		Reports []model.CellReport `json:"reports"`
	}
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, goerr.Wrap(err, "failed to decode reports", goerr.T(types.ErrTagParse))
	}
	return body.Reports, nil
}

func cmdCoverage() *cli.Command {
	var (
		dir            string
		gcsCredentials string
		asJSON         bool
	)

	return &cli.Command{
		Name:      "coverage",
		Usage:     "Check the coverage report every cell uploads",
		ArgsUsage: "WORKFLOW.yml",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Directory (or gs:// prefix) holding the reports", Value: ".", Destination: &dir},
			&cli.StringFlag{Name: "gcs-credentials", Usage: "Service account key file for gs:// reports", Sources: cli.EnvVars("ANNODB_GCS_CREDENTIALS"), Destination: &gcsCredentials},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, err := loadWorkflow(ctx, c)
			if err != nil {
				return err
			}

			store, closer, err := (&config.Database{GCSCredentials: gcsCredentials}).FileStore(ctx, dir)
			if err != nil {
				return err
			}
			defer closer()

			reports, err := uc.CheckCoverage(ctx, store.Sub(dir))
			if err != nil {
				return err
			}

			missing := 0
			rows := make([][]string, 0, len(reports))
			for _, r := range reports {
				state := okColor.Sprint("present")
				if !r.Present {
					if r.Required {
						missing++
						state = failColor.Sprint("missing")
					} else {
						state = warnColor.Sprint("missing (optional)")
					}
				}
				rate := "-"
				if r.LineRate != nil {
					rate = fmt.Sprintf("%.1f%%", *r.LineRate*100)
				}
				rows = append(rows, []string{r.Job, r.Cell.Label(), r.Path, rate, state})
			}

			w := c.Root().Writer
			if asJSON {
				if err := printJSON(w, reports); err != nil {
					return err
				}
			} else {
				printTable(w, []string{"JOB", "CELL", "REPORT", "LINES", "STATUS"}, rows)
			}

			if missing > 0 {
				return cli.Exit(fmt.Sprintf("%d required coverage reports are missing", missing), 1)
			}
			return nil
		},
	}
}
