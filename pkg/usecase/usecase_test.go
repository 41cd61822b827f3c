package usecase_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
)

// mockFileStore serves files from memory
type mockFileStore struct {
	files      map[string]string
	openFunc   func(ctx context.Context, path string) (io.ReadCloser, error)
	existsFunc func(ctx context.Context, path string) (bool, error)
}

func (m *mockFileStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if m.openFunc != nil {
		return m.openFunc(ctx, path)
	}
	content, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *mockFileStore) Exists(ctx context.Context, path string) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, path)
	}
	_, ok := m.files[filepath.Clean(path)]
	return ok, nil
}

// mockGitHubClient is a GitHubClient with a func field
type mockGitHubClient struct {
	getFileContentFunc func(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

func (m *mockGitHubClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	return m.getFileContentFunc(ctx, owner, repo, path, ref)
}

// mockNotifier records notifications on a channel
type mockNotifier struct {
	notified chan *model.Plan
	err      error
}

func (m *mockNotifier) NotifyTrigger(ctx context.Context, event *model.WebhookEvent, plan *model.Plan) error {
	m.notified <- plan
	return m.err
}
