package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/annodb/pkg/cli/config"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	return App().Run(ctx, args)
}

// App builds the command tree. Command output goes to Writer and logs to
// ErrWriter.
func App() *cli.Command {
	var loggerCfg config.Logger
	var logger *slog.Logger

	return &cli.Command{
		Name:    types.ServiceName,
		Usage:   "Genome annotation database and CI workflow service",
		Version: types.Version,
		Flags:   loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			loggerCfg.Output = c.Root().ErrWriter
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		ExitErrHandler: func(ctx context.Context, c *cli.Command, err error) {
			if err == nil {
				return
			}
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("CLI execution failed", slog.Any("error", err))
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdLoad(),
			cmdQuery(),
			cmdDescribe(),
			cmdExport(),
			cmdExtract(),
			cmdChangelog(),
			cmdMatrix(),
			cmdTrigger(),
			cmdEvaluate(),
			cmdCoverage(),
		},
	}
}
