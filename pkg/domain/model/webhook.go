package model

import "time"

// WebhookEventType represents the type of webhook event received
type WebhookEventType string

const (
	EventTypePullRequest WebhookEventType = "pull_request"
	EventTypePush        WebhookEventType = "push"
	EventTypePing        WebhookEventType = "ping"
	EventTypeUnknown     WebhookEventType = "unknown"
)

// WebhookEvent represents a webhook event received from GitHub
type WebhookEvent struct {
	ID         string           // Retrieved from X-GitHub-Delivery header
	Type       WebhookEventType // Retrieved from X-GitHub-Event header
	Action     string           // Event action (e.g., opened, synchronize)
	Repository string           // Repository full name
	Sender     string           // Sender username
	Source     *SourceInfo      // Ref information for push and pull_request events
	ReceivedAt time.Time        // Time when the event was received
	RawPayload []byte           // Raw JSON payload
}

// IsSupportedEvent checks if the event can be evaluated against workflow
// triggers
func (e *WebhookEvent) IsSupportedEvent() bool {
	switch e.Type {
	case EventTypePullRequest:
		return e.Action == "opened" || e.Action == "synchronize" || e.Action == "reopened"
	case EventTypePush:
		return true
	default:
		return false
	}
}

// WebhookResult is returned to the webhook sender
type WebhookResult struct {
	Status    string `json:"status"`
	Triggered bool   `json:"triggered"`
	Reason    string `json:"reason,omitempty"`
	Cells     int    `json:"cells"`
}
