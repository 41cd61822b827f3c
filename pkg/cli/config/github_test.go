package config_test

import (
	"testing"

	"github.com/m-mizutani/annodb/pkg/cli/config"
	"github.com/m-mizutani/gt"
)

func TestGitHub_Repository(t *testing.T) {
	tests := []struct {
		repo     string
		enabled  bool
		expected string
	}{
		{repo: "", enabled: false, expected: ""},
		{repo: "cogent3/cogent3", enabled: true, expected: "cogent3/cogent3"},
		{repo: "*", enabled: true, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			cfg := &config.GitHub{WorkflowRepo: tt.repo}
			gt.Value(t, cfg.RepositoryWorkflow()).Equal(tt.enabled)
			gt.Value(t, cfg.Repository()).Equal(tt.expected)
		})
	}
}

func TestGitHub_NewClient(t *testing.T) {
	t.Run("missing app id", func(t *testing.T) {
		_, err := (&config.GitHub{PrivateKey: "key"}).NewClient()
		gt.Error(t, err)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := (&config.GitHub{AppID: 1, InstallationID: 2}).NewClient()
		gt.Error(t, err)
	})

	t.Run("unreadable key file", func(t *testing.T) {
		_, err := (&config.GitHub{AppID: 1, InstallationID: 2, PrivateKeyFile: "/nonexistent/key.pem"}).NewClient()
		gt.Error(t, err)
	})
}

func TestSentry_Disabled(t *testing.T) {
	flush, err := (&config.Sentry{}).Configure()
	gt.NoError(t, err).Required()
	flush()
}

func TestSlack_Notifier(t *testing.T) {
	gt.True(t, (&config.Slack{}).Notifier() == nil)
	gt.True(t, (&config.Slack{WebhookURL: "https://hooks.slack.com/services/T/B/X", Channel: "#ci"}).Notifier() != nil)
}
