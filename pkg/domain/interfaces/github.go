package interfaces

import (
	"context"

	"github.com/m-mizutani/annodb/pkg/domain/model"
)

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	// GetFileContent returns the decoded content of a repository file at ref.
	// An empty ref reads the default branch.
	GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

// Notifier announces triggered workflow plans
type Notifier interface {
	NotifyTrigger(ctx context.Context, event *model.WebhookEvent, plan *model.Plan) error
}
