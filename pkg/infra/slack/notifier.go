package slack

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// maxListedCells bounds the cell names written into one message
const maxListedCells = 20

// Notifier posts trigger decisions to a Slack incoming webhook
type Notifier struct {
	webhookURL string
	channel    string
	httpClient *http.Client
}

// Option configures a Notifier
type Option func(*Notifier)

// WithChannel overrides the webhook's default channel
func WithChannel(channel string) Option {
	return func(n *Notifier) {
		n.channel = channel
	}
}

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		n.httpClient = client
	}
}

// New creates a Notifier
func New(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyTrigger posts one message describing the plan an event started
func (n *Notifier) NotifyTrigger(ctx context.Context, event *model.WebhookEvent, plan *model.Plan) error {
	msg := buildMessage(event, plan)
	msg.Channel = n.channel

	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.httpClient, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack message",
			goerr.V("event_id", event.ID),
			goerr.V("repository", event.Repository))
	}
	return nil
}

func buildMessage(event *model.WebhookEvent, plan *model.Plan) *slack.WebhookMessage {
	ref := plan.Event.Ref
	if plan.Event.BaseRef != "" {
		ref = plan.Event.BaseRef
	}

	color := "good"
	if !plan.Decision.Triggered {
		color = "#999999"
	}

	var cells []string
	for i, c := range plan.Cells {
		if i == maxListedCells {
			cells = append(cells, fmt.Sprintf("... and %d more", len(plan.Cells)-maxListedCells))
			break
		}
		cells = append(cells, "• "+c.Name)
	}

	return &slack.WebhookMessage{
		Text: fmt.Sprintf("%s on %s (%s): %d matrix cells", plan.Event.Name, event.Repository, ref, len(plan.Cells)),
		Attachments: []slack.Attachment{
			{
				Color: color,
				Title: plan.Decision.Reason,
				Text:  strings.Join(cells, "\n"),
				Fields: []slack.AttachmentField{
					{Title: "Sender", Value: event.Sender, Short: true},
					{Title: "Delivery", Value: event.ID, Short: true},
				},
			},
		},
	}
}
