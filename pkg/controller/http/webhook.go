package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/google/uuid"
	githubcontroller "github.com/m-mizutani/annodb/pkg/controller/github"
	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// WebhookHandler handles GitHub webhooks
type WebhookHandler struct {
	secret    string
	processor *githubcontroller.EventProcessor
}

// NewWebhookHandler creates a new WebhookHandler. A nil use case answers
// every delivery with 501.
func NewWebhookHandler(secret string, webhookUC interfaces.WebhookUseCase) *WebhookHandler {
	h := &WebhookHandler{secret: secret}
	if webhookUC != nil {
		h.processor = githubcontroller.NewEventProcessor(webhookUC)
	}
	return h
}

// Handle processes webhook requests
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	if h.processor == nil {
		handleError(w, r, notConfigured("webhook"))
		return
	}

	// Read payload
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify signature
	signature := r.Header.Get("X-Hub-Signature-256")
	if !h.verifySignature(body, signature) {
		logger.Warn("Invalid webhook signature")
		writeError(w, goerr.New("invalid signature"), http.StatusUnauthorized)
		return
	}

	// Parse event using GitHub SDK
	eventType := r.Header.Get("X-GitHub-Event")
	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		logger.Warn("Failed to parse webhook payload", "error", err, "event_type", eventType)
		writeError(w, goerr.Wrap(err, "invalid JSON payload"), http.StatusBadRequest)
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	event := &model.WebhookEvent{
		ID:         deliveryID,
		Type:       model.WebhookEventType(eventType),
		ReceivedAt: time.Now(),
		RawPayload: body,
	}

	result, err := h.processor.ProcessEvent(ctx, event, payload)
	if err != nil {
		if goerr.HasTag(err, types.ErrTagInvalidArgument) {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		logger.Error("Failed to process webhook event", "error", err, "delivery_id", deliveryID)
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, result)
}

// verifySignature verifies the webhook signature
func (h *WebhookHandler) verifySignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}

	// Remove "sha256=" prefix if present
	signature = strings.TrimPrefix(signature, "sha256=")

	// Calculate HMAC-SHA256
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedMAC))
}
