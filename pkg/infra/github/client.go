package github

import (
	"context"
	"errors"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Client reads repository files through the GitHub REST API
type Client struct {
	githubClient *github.Client
}

type clientConfig struct {
	baseURL string
}

// Option configures a Client
type Option func(*clientConfig)

// WithBaseURL points the client at a GitHub Enterprise Server API
func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// NewClient creates a new GitHub client with App authentication
func NewClient(appID, installationID int64, privateKey []byte, opts ...Option) (*Client, error) {
	cfg := applyOptions(opts)

	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID))
	}
	if cfg.baseURL != "" {
		itr.BaseURL = cfg.baseURL
	}

	return newClient(&http.Client{Transport: itr}, cfg)
}

// NewClientWithHTTPClient creates a client that sends requests through
// httpClient as is. Authentication, if any, is the caller's concern.
func NewClientWithHTTPClient(httpClient *http.Client, opts ...Option) (*Client, error) {
	return newClient(httpClient, applyOptions(opts))
}

func applyOptions(opts []Option) *clientConfig {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func newClient(httpClient *http.Client, cfg *clientConfig) (*Client, error) {
	githubClient := github.NewClient(httpClient)
	if cfg.baseURL != "" {
		var err error
		githubClient, err = githubClient.WithEnterpriseURLs(cfg.baseURL, cfg.baseURL)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub base URL", goerr.V("base_url", cfg.baseURL))
		}
	}
	return &Client{githubClient: githubClient}, nil
}

// GetFileContent returns the decoded content of a repository file
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}

	file, dir, resp, err := c.githubClient.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, goerr.Wrap(err, "repository file not found",
				goerr.V("repo", owner+"/"+repo),
				goerr.V("path", path),
				goerr.V("ref", ref),
				goerr.T(types.ErrTagNotFound))
		}
		return nil, goerr.Wrap(err, "failed to get repository content",
			goerr.V("repo", owner+"/"+repo),
			goerr.V("path", path),
			goerr.V("ref", ref))
	}
	if file == nil {
		return nil, goerr.New("path is a directory",
			goerr.V("repo", owner+"/"+repo),
			goerr.V("path", path),
			goerr.V("entries", len(dir)),
			goerr.T(types.ErrTagInvalidArgument))
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode repository content",
			goerr.V("repo", owner+"/"+repo),
			goerr.V("path", path))
	}
	return []byte(content), nil
}
