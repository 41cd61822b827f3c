package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/metrics"
)

const maxBodySize = 10 << 20

// config holds internal HTTP server configuration
type config struct {
	addr          string
	webhookSecret string
	rateLimit     int

	annotationUC interfaces.AnnotationUseCase
	changelogUC  interfaces.ChangelogUseCase
	workflowUC   interfaces.WorkflowUseCase
	webhookUC    interfaces.WebhookUseCase
	coverage     interfaces.FileStore
	metrics      *metrics.Metrics
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookSecret sets the webhook secret
func WithWebhookSecret(secret string) Option {
	return func(c *config) {
		c.webhookSecret = secret
	}
}

// WithRateLimit limits /api requests per client IP and minute. Zero
// disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(c *config) {
		c.rateLimit = perMinute
	}
}

// WithAnnotation serves the annotation endpoints
func WithAnnotation(uc interfaces.AnnotationUseCase) Option {
	return func(c *config) {
		c.annotationUC = uc
	}
}

// WithChangelog serves the changelog endpoints
func WithChangelog(uc interfaces.ChangelogUseCase) Option {
	return func(c *config) {
		c.changelogUC = uc
	}
}

// WithWorkflow serves the workflow endpoints
func WithWorkflow(uc interfaces.WorkflowUseCase) Option {
	return func(c *config) {
		c.workflowUC = uc
	}
}

// WithWebhook handles GitHub webhooks
func WithWebhook(uc interfaces.WebhookUseCase) Option {
	return func(c *config) {
		c.webhookUC = uc
	}
}

// WithCoverageStore sets where coverage reports are looked up
func WithCoverageStore(files interfaces.FileStore) Option {
	return func(c *config) {
		c.coverage = files
	}
}

// WithMetrics exposes m on /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server. Endpoints of use cases that are not
// configured respond 501.
func NewServer(ctx context.Context, opts ...Option) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr: "localhost:8080",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/health", handleHealth)
	if cfg.metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.metrics.Handler())
	}

	annotation := &annotationHandler{uc: cfg.annotationUC}
	changelog := &changelogHandler{uc: cfg.changelogUC}
	workflow := &workflowHandler{uc: cfg.workflowUC, coverage: cfg.coverage}

	router.Route("/api/v1", func(r chi.Router) {
		if cfg.rateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.rateLimit, time.Minute))
		}
		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/datasets", annotation.datasets)
		r.Get("/annotations", annotation.find)
		r.Get("/annotations/describe", annotation.describe)
		r.Get("/annotations/count", annotation.count)

		r.Get("/changelog", changelog.entries)
		r.Get("/changelog/summary", changelog.summary)
		r.Get("/changelog/validate", changelog.validate)

		r.Get("/workflow", workflow.jobs)
		r.Post("/workflow/trigger", workflow.trigger)
		r.Post("/workflow/evaluate", workflow.evaluate)
		r.Get("/workflow/coverage", workflow.checkCoverage)
	})

	// Webhook endpoint
	webhookHandler := NewWebhookHandler(cfg.webhookSecret, cfg.webhookUC)
	router.Post("/hooks/github/app", webhookHandler.Handle)

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
