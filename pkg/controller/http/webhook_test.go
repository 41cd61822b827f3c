package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	controller "github.com/m-mizutani/annodb/pkg/controller/http"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/infra/source"
	"github.com/m-mizutani/annodb/pkg/usecase"
	"github.com/m-mizutani/gt"
)

// generateSignature generates HMAC-SHA256 signature for testing
func generateSignature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newWebhookUseCase(t *testing.T) *usecase.Workflow {
	t.Helper()
	wf := usecase.NewWorkflow(source.New(), "testdata/testing_develop.yml")
	gt.NoError(t, wf.Load(context.Background())).Required()
	return wf
}

func pushPayload(ref string) map[string]any {
	return map[string]any{
		"ref":   ref,
		"after": "abc123",
		"repository": map[string]any{
			"name":      "cogent3",
			"full_name": "cogent3/cogent3",
			"owner":     map[string]any{"login": "cogent3"},
		},
		"sender": map[string]any{"login": "testuser"},
	}
}

func pullRequestPayload(action, base string) map[string]any {
	return map[string]any{
		"action": action,
		"number": 42,
		"pull_request": map[string]any{
			"id":   1,
			"head": map[string]any{"ref": "feature/gff", "sha": "def456"},
			"base": map[string]any{"ref": base},
		},
		"repository": map[string]any{
			"name":      "cogent3",
			"full_name": "cogent3/cogent3",
			"owner":     map[string]any{"login": "cogent3"},
		},
		"sender": map[string]any{"login": "testuser"},
	}
}

func TestWebhookHandler_SignatureVerification(t *testing.T) {
	secret := "test-secret"
	handler := controller.NewWebhookHandler(secret, usecase.NewWebhook(newWebhookUseCase(t)))

	payload, err := json.Marshal(pullRequestPayload("opened", "develop"))
	gt.NoError(t, err).Required()

	tests := []struct {
		name           string
		signature      string
		wantStatusCode int
	}{
		{name: "Valid signature", signature: generateSignature(secret, payload), wantStatusCode: http.StatusOK},
		{name: "Invalid signature", signature: "sha256=invalid", wantStatusCode: http.StatusUnauthorized},
		{name: "Wrong secret", signature: generateSignature("other", payload), wantStatusCode: http.StatusUnauthorized},
		{name: "Missing signature", signature: "", wantStatusCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-GitHub-Event", "pull_request")
			req.Header.Set("X-GitHub-Delivery", "test-delivery")
			req.Header.Set("X-Hub-Signature-256", tt.signature)

			w := httptest.NewRecorder()
			handler.Handle(w, req)
			gt.Number(t, w.Code).Equal(tt.wantStatusCode)
		})
	}
}

func TestWebhookHandler_EventParsing(t *testing.T) {
	secret := "test-secret"
	handler := controller.NewWebhookHandler(secret, usecase.NewWebhook(newWebhookUseCase(t)))

	tests := []struct {
		name           string
		eventType      string
		payload        map[string]any
		wantStatusCode int
		wantTriggered  bool
		wantCells      int
		wantReason     string
	}{
		{
			name:           "push to develop",
			eventType:      "push",
			payload:        pushPayload("refs/heads/develop"),
			wantStatusCode: http.StatusOK,
			wantTriggered:  true,
			wantCells:      9,
		},
		{
			name:           "push to feature branch",
			eventType:      "push",
			payload:        pushPayload("refs/heads/feature/gff"),
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "pull request into master",
			eventType:      "pull_request",
			payload:        pullRequestPayload("reopened", "master"),
			wantStatusCode: http.StatusOK,
			wantTriggered:  true,
			wantCells:      9,
		},
		{
			name:           "closed pull request",
			eventType:      "pull_request",
			payload:        pullRequestPayload("closed", "develop"),
			wantStatusCode: http.StatusOK,
			wantReason:     "event is not evaluated",
		},
		{
			name:           "ping",
			eventType:      "ping",
			payload:        map[string]any{"zen": "Design for failure.", "hook_id": 1},
			wantStatusCode: http.StatusOK,
			wantReason:     "pong",
		},
		{
			name:      "release is accepted without evaluation",
			eventType: "release",
			payload: map[string]any{
				"action":     "released",
				"release":    map[string]any{"id": 1},
				"repository": map[string]any{"full_name": "test/repo"},
				"sender":     map[string]any{"login": "testuser"},
			},
			wantStatusCode: http.StatusOK,
			wantReason:     "event is not evaluated",
		},
		{
			name:           "push without repository",
			eventType:      "push",
			payload:        map[string]any{"ref": "refs/heads/develop"},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payloadBytes, err := json.Marshal(tt.payload)
			gt.NoError(t, err).Required()

			req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payloadBytes))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-GitHub-Event", tt.eventType)
			req.Header.Set("X-GitHub-Delivery", "test-delivery")
			req.Header.Set("X-Hub-Signature-256", generateSignature(secret, payloadBytes))

			w := httptest.NewRecorder()
			handler.Handle(w, req)
			gt.Number(t, w.Code).Equal(tt.wantStatusCode)
			if tt.wantStatusCode != http.StatusOK {
				return
			}

			var result model.WebhookResult
			gt.NoError(t, json.NewDecoder(w.Body).Decode(&result)).Required()
			gt.Value(t, result.Status).Equal("success")
			gt.Value(t, result.Triggered).Equal(tt.wantTriggered)
			gt.Number(t, result.Cells).Equal(tt.wantCells)
			if tt.wantReason != "" {
				gt.Value(t, result.Reason).Equal(tt.wantReason)
			}
		})
	}
}

func TestWebhookHandler_InvalidPayload(t *testing.T) {
	secret := "test-secret"
	handler := controller.NewWebhookHandler(secret, usecase.NewWebhook(newWebhookUseCase(t)))

	payload := []byte(`{"ref":`)
	req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payload))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", generateSignature(secret, payload))

	w := httptest.NewRecorder()
	handler.Handle(w, req)
	gt.Number(t, w.Code).Equal(http.StatusBadRequest)
}

func TestWebhookHandler_NotConfigured(t *testing.T) {
	handler := controller.NewWebhookHandler("secret", nil)

	req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	handler.Handle(w, req)
	gt.Number(t, w.Code).Equal(http.StatusNotImplemented)
}

func TestWebhookHandler_Integration(t *testing.T) {
	ctx := context.Background()
	secret := "integration-test-secret"

	server, err := controller.NewServer(
		ctx,
		controller.WithAddr("localhost:0"),
		controller.WithWebhookSecret(secret),
		controller.WithWebhook(usecase.NewWebhook(newWebhookUseCase(t))),
	)
	gt.NoError(t, err).Required()

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	payloadBytes, err := json.Marshal(pushPayload("refs/heads/master"))
	gt.NoError(t, err).Required()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/hooks/github/app", bytes.NewReader(payloadBytes))
	gt.NoError(t, err).Required()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", generateSignature(secret, payloadBytes))

	resp, err := http.DefaultClient.Do(req)
	gt.NoError(t, err).Required()
	defer func() {
		_ = resp.Body.Close() // Error ignored in test
	}()

	gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
	var result model.WebhookResult
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	gt.True(t, result.Triggered)
}
