package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/annodb/pkg/cli/config"
	controller "github.com/m-mizutani/annodb/pkg/controller/http"
	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/infra/sqlite"
	"github.com/m-mizutani/annodb/pkg/metrics"
	"github.com/m-mizutani/annodb/pkg/usecase"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const preloadConcurrency = 4

func cmdServe() *cli.Command {
	var (
		serverCfg   config.Server
		githubCfg   config.GitHub
		dbCfg       config.Database
		workflowCfg config.Workflow
		sentryCfg   config.Sentry
		slackCfg    config.Slack
	)

	var flags []cli.Flag
	flags = append(flags, serverCfg.Flags()...)
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, dbCfg.Flags()...)
	flags = append(flags, workflowCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting annodb server",
				slog.String("addr", serverCfg.Addr),
				slog.String("workflow", workflowCfg.Path),
				slog.String("changelog", workflowCfg.Changelog),
				slog.Bool("sentry", sentryCfg.DSN != ""),
				slog.Bool("slack", slackCfg.WebhookURL != ""),
			)

			flush, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			defer flush()

			datasets, err := dbCfg.Datasets()
			if err != nil {
				return err
			}
			files, closeFiles, err := dbCfg.FileStore(ctx,
				append(config.Paths(datasets), workflowCfg.Path, workflowCfg.Changelog, workflowCfg.CoverageDir)...)
			if err != nil {
				return err
			}
			defer closeFiles()

			m := metrics.New()
			opts := []controller.Option{
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(githubCfg.WebhookSecret),
				controller.WithRateLimit(serverCfg.RateLimit),
				controller.WithMetrics(m),
			}
			reloaders := map[string]func(context.Context) error{}

			// Annotation datasets
			annotationUC := usecase.NewAnnotation(files, sqlite.NewAnnotationDB, usecase.WithAnnotationMetrics(m))
			defer func() {
				if err := annotationUC.Close(); err != nil {
					logger.Warn("Failed to close annotation databases", "error", err)
				}
			}()

			eg, egCtx := errgroup.WithContext(ctx)
			eg.SetLimit(preloadConcurrency)
			for _, ds := range datasets {
				eg.Go(func() error {
					_, err := annotationUC.Load(egCtx, ds)
					return err
				})
			}
			if err := eg.Wait(); err != nil {
				return goerr.Wrap(err, "failed to preload datasets")
			}
			opts = append(opts, controller.WithAnnotation(annotationUC))

			// Changelog
			if workflowCfg.Changelog != "" {
				changelogUC := usecase.NewChangelog(files, workflowCfg.Changelog)
				if err := changelogUC.Load(ctx); err != nil {
					return err
				}
				opts = append(opts, controller.WithChangelog(changelogUC))
				reloaders[workflowCfg.Changelog] = changelogUC.Load
			}

			// Workflow, read locally or from the repository of each event
			var provider interfaces.WorkflowProvider
			switch {
			case githubCfg.RepositoryWorkflow():
				client, err := githubCfg.NewClient()
				if err != nil {
					return err
				}
				path := workflowCfg.Path
				if path == "" {
					path = defaultWorkflowPath
				}
				provider, err = usecase.NewRepositoryWorkflow(client, githubCfg.Repository(), path, githubCfg.WorkflowRef)
				if err != nil {
					return err
				}

			case workflowCfg.Path != "":
				workflowUC := usecase.NewWorkflow(files, workflowCfg.Path, usecase.WithWorkflowMetrics(m))
				if err := workflowUC.Load(ctx); err != nil {
					return err
				}
				provider = workflowUC
				opts = append(opts, controller.WithWorkflow(workflowUC))
				reloaders[workflowCfg.Path] = workflowUC.Load
			}

			if provider != nil {
				if githubCfg.WebhookSecret == "" {
					logger.Warn("GitHub webhook secret is empty, deliveries signed with another secret are rejected")
				}
				webhookUC := usecase.NewWebhook(provider,
					usecase.WithNotifier(slackCfg.Notifier()),
					usecase.WithWebhookMetrics(m),
				)
				opts = append(opts, controller.WithWebhook(webhookUC))
			}

			if workflowCfg.CoverageDir != "" {
				opts = append(opts, controller.WithCoverageStore(files.Sub(workflowCfg.CoverageDir)))
			}

			watchCtx, stopWatch := context.WithCancel(ctx)
			defer stopWatch()
			if workflowCfg.Watch && len(reloaders) > 0 {
				if err := watchFiles(watchCtx, reloaders); err != nil {
					return err
				}
			}

			// Create HTTP server with options
			server, err := controller.NewServer(ctx, opts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serverErr <- goerr.Wrap(err, "HTTP server failed", goerr.V("addr", serverCfg.Addr))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			case err := <-serverErr:
				return err
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverCfg.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
