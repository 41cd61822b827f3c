package config

import (
	"os"

	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/infra/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub configuration
type GitHub struct {
	WebhookSecret  string
	AppID          int64
	InstallationID int64
	PrivateKey     string
	PrivateKeyFile string
	BaseURL        string
	WorkflowRepo   string
	WorkflowRef    string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("ANNODB_GITHUB_WEBHOOK_SECRET"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID used to read repository workflows",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("ANNODB_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("ANNODB_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("ANNODB_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-private-key-file",
			Usage:       "Path to the GitHub App private key",
			Destination: &c.PrivateKeyFile,
			Sources:     cli.EnvVars("ANNODB_GITHUB_PRIVATE_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "github-base-url",
			Usage:       "GitHub Enterprise Server API URL",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("ANNODB_GITHUB_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "workflow-repo",
			Usage:       "Read the workflow from this repository (owner/repo) instead of --workflow-path. Set to '*' to use the repository of each event",
			Destination: &c.WorkflowRepo,
			Sources:     cli.EnvVars("ANNODB_WORKFLOW_REPO"),
		},
		&cli.StringFlag{
			Name:        "workflow-ref",
			Usage:       "Git ref of the repository workflow (default: the commit of each event)",
			Destination: &c.WorkflowRef,
			Sources:     cli.EnvVars("ANNODB_WORKFLOW_REF"),
		},
	}
}

// RepositoryWorkflow reports whether workflows are read through the GitHub API
func (c *GitHub) RepositoryWorkflow() bool {
	return c.WorkflowRepo != ""
}

// Repository returns the configured "owner/repo", or empty for the
// repository of each event
func (c *GitHub) Repository() string {
	if c.WorkflowRepo == "*" {
		return ""
	}
	return c.WorkflowRepo
}

// NewClient creates an App-authenticated contents client
func (c *GitHub) NewClient() (*github.Client, error) {
	if c.AppID == 0 || c.InstallationID == 0 {
		return nil, goerr.New("github-app-id and github-installation-id are required to read repository workflows",
			goerr.T(types.ErrTagInvalidArgument))
	}

	key := []byte(c.PrivateKey)
	if c.PrivateKeyFile != "" {
		data, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read GitHub App private key",
				goerr.V("path", c.PrivateKeyFile))
		}
		key = data
	}
	if len(key) == 0 {
		return nil, goerr.New("github-private-key or github-private-key-file is required",
			goerr.T(types.ErrTagInvalidArgument))
	}

	var opts []github.Option
	if c.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(c.BaseURL))
	}
	return github.NewClient(c.AppID, c.InstallationID, key, opts...)
}
