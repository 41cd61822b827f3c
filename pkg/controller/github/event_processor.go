package github

import (
	"context"
	"strconv"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// EventProcessor turns parsed GitHub webhook payloads into webhook events
// and hands them to the webhook use case.
type EventProcessor struct {
	webhookUC interfaces.WebhookUseCase
}

// NewEventProcessor creates a new GitHub event processor
func NewEventProcessor(webhookUC interfaces.WebhookUseCase) *EventProcessor {
	return &EventProcessor{
		webhookUC: webhookUC,
	}
}

// ProcessEvent completes event from payload (as returned by
// github.ParseWebHook) and evaluates it.
func (p *EventProcessor) ProcessEvent(ctx context.Context, event *model.WebhookEvent, payload any) (*model.WebhookResult, error) {
	logger := ctxlog.From(ctx)

	switch e := payload.(type) {
	case *github.PushEvent:
		event.Type = model.EventTypePush
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = e.GetSender().GetLogin()

		src, err := SourceFromPush(e)
		if err != nil {
			return nil, err
		}
		event.Source = src

	case *github.PullRequestEvent:
		event.Type = model.EventTypePullRequest
		event.Action = e.GetAction()
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = e.GetSender().GetLogin()

		src, err := SourceFromPullRequest(e)
		if err != nil {
			return nil, err
		}
		event.Source = src

	case *github.PingEvent:
		event.Type = model.EventTypePing
		logger.Info("Received ping", "hook_id", e.GetHookID(), "zen", e.GetZen())

	default:
		logger.Info("Ignoring unsupported event type", "event_type", event.Type)
		event.Type = model.EventTypeUnknown
	}

	return p.webhookUC.ProcessEvent(ctx, event)
}

// SourceFromPush extracts the pushed ref and commit
func SourceFromPush(e *github.PushEvent) (*model.SourceInfo, error) {
	owner := e.GetRepo().GetOwner().GetLogin()
	if owner == "" {
		owner = e.GetRepo().GetOwner().GetName()
	}
	repo := e.GetRepo().GetName()
	if owner == "" || repo == "" || e.GetRef() == "" {
		return nil, goerr.New("missing required fields in push event",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.V("ref", e.GetRef()),
			goerr.T(types.ErrTagInvalidArgument))
	}

	return &model.SourceInfo{
		Owner:     owner,
		Repo:      repo,
		CommitSHA: e.GetAfter(),
		EventType: string(model.EventTypePush),
		Ref:       e.GetRef(),
		Actor:     e.GetSender().GetLogin(),
		Metadata: map[string]string{
			"before":  e.GetBefore(),
			"after":   e.GetAfter(),
			"pusher":  e.GetPusher().GetName(),
			"created": strconv.FormatBool(e.GetCreated()),
			"deleted": strconv.FormatBool(e.GetDeleted()),
		},
	}, nil
}

// SourceFromPullRequest extracts the head commit and base branch of a pull
// request
func SourceFromPullRequest(e *github.PullRequestEvent) (*model.SourceInfo, error) {
	owner := e.GetRepo().GetOwner().GetLogin()
	repo := e.GetRepo().GetName()
	pr := e.GetPullRequest()
	if owner == "" || repo == "" || pr == nil {
		return nil, goerr.New("missing required fields in pull_request event",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.T(types.ErrTagInvalidArgument))
	}

	return &model.SourceInfo{
		Owner:     owner,
		Repo:      repo,
		CommitSHA: pr.GetHead().GetSHA(),
		EventType: string(model.EventTypePullRequest),
		Action:    e.GetAction(),
		Ref:       pr.GetHead().GetRef(),
		BaseRef:   pr.GetBase().GetRef(),
		Actor:     e.GetSender().GetLogin(),
		Metadata: map[string]string{
			"number": strconv.Itoa(e.GetNumber()),
			"title":  pr.GetTitle(),
			"draft":  strconv.FormatBool(pr.GetDraft()),
		},
	}, nil
}
