package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// LoggingMiddleware returns a middleware that logs HTTP requests
func LoggingMiddleware(ctx context.Context) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := ctxlog.From(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			// handlers log through the request context
			next.ServeHTTP(ww, r.WithContext(ctxlog.With(r.Context(), logger)))
		})
	}
}

// errorStatus maps an error tag to a response status
func errorStatus(err error) int {
	switch {
	case goerr.HasTag(err, types.ErrTagInvalidArgument):
		return http.StatusBadRequest
	case goerr.HasTag(err, types.ErrTagNotFound):
		return http.StatusNotFound
	case goerr.HasTag(err, types.ErrTagParse):
		return http.StatusUnprocessableEntity
	case goerr.HasTag(err, types.ErrTagUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// handleError logs err and writes it with the status of its tag. Server
// errors are reported to Sentry.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	logger := ctxlog.From(r.Context())

	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		logger.Error("Request failed", "error", err, "path", r.URL.Path)
		sentry.CaptureException(err)
	} else {
		logger.Warn("Request rejected", "error", err, "path", r.URL.Path, "status", status)
	}
	writeError(w, err, status)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	}); err != nil {
		// Can't get context here, so use background context
		ctxlog.From(context.Background()).Error("Failed to encode error response", "error", err)
	}
}

// writeJSON writes v with status 200
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode response", "error", err)
	}
}

// decodeJSON reads a JSON request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(err, "invalid JSON request body", goerr.T(types.ErrTagInvalidArgument))
	}
	return nil
}

func notConfigured(name string) error {
	return goerr.New(name+" is not configured", goerr.T(types.ErrTagUnsupported))
}
