package config

import "github.com/urfave/cli/v3"

// Workflow holds the CI workflow, changelog and coverage report locations
type Workflow struct {
	Path        string
	Changelog   string
	CoverageDir string
	Watch       bool
}

// Flags returns CLI flags for workflow configuration
func (c *Workflow) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workflow-path",
			Usage:       "CI workflow YAML file",
			Destination: &c.Path,
			Sources:     cli.EnvVars("ANNODB_WORKFLOW_PATH"),
		},
		&cli.StringFlag{
			Name:        "changelog",
			Usage:       "Changelog markdown file",
			Destination: &c.Changelog,
			Sources:     cli.EnvVars("ANNODB_CHANGELOG"),
		},
		&cli.StringFlag{
			Name:        "coverage-dir",
			Usage:       "Directory (or gs:// prefix) holding coverage reports",
			Destination: &c.CoverageDir,
			Sources:     cli.EnvVars("ANNODB_COVERAGE_DIR"),
		},
		&cli.BoolFlag{
			Name:        "watch",
			Usage:       "Reload the workflow and changelog files when they change",
			Value:       true,
			Destination: &c.Watch,
			Sources:     cli.EnvVars("ANNODB_WATCH"),
		},
	}
}
