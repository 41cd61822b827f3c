package model_test

import (
	"testing"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

func TestWebhookEvent_IsSupportedEvent(t *testing.T) {
	testCases := map[string]struct {
		eventType model.WebhookEventType
		action    string
		want      bool
	}{
		"push":                       {eventType: model.EventTypePush, want: true},
		"pull_request opened":        {eventType: model.EventTypePullRequest, action: "opened", want: true},
		"pull_request synchronize":   {eventType: model.EventTypePullRequest, action: "synchronize", want: true},
		"pull_request reopened":      {eventType: model.EventTypePullRequest, action: "reopened", want: true},
		"pull_request closed":        {eventType: model.EventTypePullRequest, action: "closed"},
		"pull_request labeled":       {eventType: model.EventTypePullRequest, action: "labeled"},
		"ping":                       {eventType: model.EventTypePing},
		"release and other payloads": {eventType: model.EventTypeUnknown, action: "published"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			ev := &model.WebhookEvent{Type: tc.eventType, Action: tc.action}
			gt.Value(t, ev.IsSupportedEvent()).Equal(tc.want)
		})
	}
}

func TestSourceInfo_TriggerEvent(t *testing.T) {
	src := &model.SourceInfo{
		Owner:     "cogent3",
		Repo:      "cogent3",
		EventType: "pull_request",
		Action:    "synchronize",
		Ref:       "fix-gff-parent",
		BaseRef:   "develop",
	}

	gt.Value(t, src.FullName()).Equal("cogent3/cogent3")
	gt.Value(t, src.TriggerEvent()).Equal(model.TriggerEvent{
		Name:       "pull_request",
		Action:     "synchronize",
		Ref:        "fix-gff-parent",
		BaseRef:    "develop",
		Repository: "cogent3/cogent3",
	})
}
