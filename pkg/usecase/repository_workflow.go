package usecase

import (
	"bytes"
	"context"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/parser/workflow"
	"github.com/m-mizutani/goerr/v2"
)

// RepositoryWorkflow reads the workflow file from the repository through the
// GitHub contents API.
type RepositoryWorkflow struct {
	client interfaces.GitHubClient
	owner  string
	repo   string
	path   string
	ref    string
}

var _ interfaces.WorkflowProvider = (*RepositoryWorkflow)(nil)

// NewRepositoryWorkflow creates a provider for path in repository
// ("owner/repo"). An empty repository reads from the repository of each
// event. An empty ref reads the file at the event's commit.
func NewRepositoryWorkflow(client interfaces.GitHubClient, repository, path, ref string) (*RepositoryWorkflow, error) {
	if path == "" {
		return nil, goerr.New("workflow path is required", goerr.T(types.ErrTagInvalidArgument))
	}

	p := &RepositoryWorkflow{client: client, path: path, ref: ref}
	if repository != "" {
		owner, repo, ok := strings.Cut(repository, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return nil, goerr.New("repository must be owner/repo",
				goerr.V("repository", repository),
				goerr.T(types.ErrTagInvalidArgument))
		}
		p.owner, p.repo = owner, repo
	}
	return p, nil
}

// Workflow fetches and parses the workflow that applies to src
func (p *RepositoryWorkflow) Workflow(ctx context.Context, src *model.SourceInfo) (*model.Workflow, error) {
	owner, repo, ref := p.owner, p.repo, p.ref
	if owner == "" && src != nil {
		owner, repo = src.Owner, src.Repo
	}
	if ref == "" && src != nil {
		ref = src.CommitSHA
	}
	if owner == "" || repo == "" {
		return nil, goerr.New("repository of the workflow is unknown", goerr.T(types.ErrTagInvalidArgument))
	}

	data, err := p.client.GetFileContent(ctx, owner, repo, p.path, ref)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch workflow",
			goerr.V("repo", owner+"/"+repo),
			goerr.V("path", p.path),
			goerr.V("ref", ref))
	}

	wf, err := workflow.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse repository workflow",
			goerr.V("repo", owner+"/"+repo),
			goerr.V("path", p.path))
	}
	return wf, nil
}
