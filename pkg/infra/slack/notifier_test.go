package slack_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	slacknotifier "github.com/m-mizutani/annodb/pkg/infra/slack"
	"github.com/m-mizutani/gt"
	"github.com/slack-go/slack"
)

func testPlan(cells int) *model.Plan {
	plan := &model.Plan{
		Event:    model.TriggerEvent{Name: "push", Ref: "refs/heads/develop"},
		Decision: model.TriggerDecision{Triggered: true, Reason: `push on branch "develop"`},
	}
	for i := range cells {
		plan.Cells = append(plan.Cells, model.CellPlan{Job: "tests", Name: fmt.Sprintf("cell-%d", i)})
	}
	return plan
}

func TestNotifier_NotifyTrigger(t *testing.T) {
	var received slack.WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		gt.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := slacknotifier.New(srv.URL, slacknotifier.WithChannel("#ci"), slacknotifier.WithHTTPClient(srv.Client()))
	event := &model.WebhookEvent{ID: "d-1", Repository: "cogent3/cogent3", Sender: "octocat"}

	gt.NoError(t, n.NotifyTrigger(context.Background(), event, testPlan(25)))

	gt.Value(t, received.Channel).Equal("#ci")
	gt.Value(t, received.Text).Equal("push on cogent3/cogent3 (refs/heads/develop): 25 matrix cells")
	gt.A(t, received.Attachments).Length(1)
	gt.Value(t, received.Attachments[0].Color).Equal("good")
	gt.S(t, received.Attachments[0].Text).Contains("• cell-0")
	gt.S(t, received.Attachments[0].Text).Contains("... and 5 more")
	gt.S(t, received.Attachments[0].Text).NotContains("cell-20")
}

func TestNotifier_NotifyTriggerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := slacknotifier.New(srv.URL, slacknotifier.WithHTTPClient(srv.Client()))
	err := n.NotifyTrigger(context.Background(), &model.WebhookEvent{ID: "d-2"}, testPlan(1))
	gt.Error(t, err)
}
