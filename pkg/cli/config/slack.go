package config

import (
	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/infra/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds trigger notification configuration
type Slack struct {
	WebhookURL string
	Channel    string
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for triggered workflows",
			Destination: &c.WebhookURL,
			Sources:     cli.EnvVars("ANNODB_SLACK_WEBHOOK_URL"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Override the channel of the incoming webhook",
			Destination: &c.Channel,
			Sources:     cli.EnvVars("ANNODB_SLACK_CHANNEL"),
		},
	}
}

// Notifier returns the Slack notifier, or nil when no webhook is set
func (c *Slack) Notifier() interfaces.Notifier {
	if c.WebhookURL == "" {
		return nil
	}

	var opts []slack.Option
	if c.Channel != "" {
		opts = append(opts, slack.WithChannel(c.Channel))
	}
	return slack.New(c.WebhookURL, opts...)
}
