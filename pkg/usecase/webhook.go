package usecase

import (
	"context"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/metrics"
	"github.com/m-mizutani/annodb/pkg/utils/async"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

type webhookUseCase struct {
	provider interfaces.WorkflowProvider
	notifier interfaces.Notifier
	metrics  *metrics.Metrics
}

var _ interfaces.WebhookUseCase = (*webhookUseCase)(nil)

// WebhookOption configures the webhook use case
type WebhookOption func(*webhookUseCase)

// WithNotifier announces triggered plans
func WithNotifier(n interfaces.Notifier) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.notifier = n
	}
}

// WithWebhookMetrics counts processed events
func WithWebhookMetrics(m *metrics.Metrics) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.metrics = m
	}
}

// NewWebhook creates a new instance of WebhookUseCase
func NewWebhook(provider interfaces.WorkflowProvider, opts ...WebhookOption) *webhookUseCase {
	uc := &webhookUseCase{provider: provider}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessEvent evaluates the workflow trigger for push and pull_request
// events. Other events are accepted without evaluation.
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) (*model.WebhookResult, error) {
	logger := ctxlog.From(ctx).With("delivery_id", event.ID)

	logger.Info("Processing webhook event",
		"type", event.Type,
		"action", event.Action,
		"repository", event.Repository,
		"sender", event.Sender,
		"supported", event.IsSupportedEvent(),
	)

	result := &model.WebhookResult{Status: "success"}

	if !event.IsSupportedEvent() || event.Source == nil {
		if event.Type == model.EventTypePing {
			result.Reason = "pong"
		} else {
			logger.Warn("Unsupported event received",
				"type", event.Type,
				"action", event.Action,
			)
			result.Reason = "event is not evaluated"
		}
		uc.metrics.WebhookEvent(string(event.Type), false)
		return result, nil
	}

	wf, err := uc.provider.Workflow(ctx, event.Source)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get workflow", goerr.V("delivery_id", event.ID))
	}

	plan, err := wf.Plan(event.Source.TriggerEvent())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to plan workflow", goerr.V("delivery_id", event.ID))
	}

	result.Triggered = plan.Decision.Triggered
	result.Reason = plan.Decision.Reason
	result.Cells = len(plan.Cells)
	uc.metrics.WebhookEvent(string(event.Type), result.Triggered)

	logger.Info("Trigger evaluated",
		"triggered", result.Triggered,
		"reason", result.Reason,
		"cells", result.Cells,
	)

	if result.Triggered && uc.notifier != nil {
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.notifier.NotifyTrigger(ctx, event, plan)
		})
	}

	return result, nil
}
