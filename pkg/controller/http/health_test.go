package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	controller "github.com/m-mizutani/annodb/pkg/controller/http"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestHealthEndpoint(t *testing.T) {
	ctx := context.Background()

	server, err := controller.NewServer(
		ctx,
		controller.WithAddr("localhost:0"),
		controller.WithWebhookSecret("test-secret"),
	)
	gt.NoError(t, err).Required()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	server.Handler.ServeHTTP(w, req)
	gt.Number(t, w.Code).Equal(http.StatusOK)

	var status model.HealthStatus
	gt.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	gt.Value(t, status.Status).Equal("healthy")
	gt.Value(t, status.Service).Equal("annodb")
	gt.Value(t, status.Version).Equal(types.Version)
}
