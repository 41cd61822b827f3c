package config

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Sentry holds error reporting configuration
type Sentry struct {
	DSN         string
	Environment string
}

// Flags returns CLI flags for Sentry configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN (error reporting is disabled when empty)",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("ANNODB_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Value:       "production",
			Destination: &c.Environment,
			Sources:     cli.EnvVars("ANNODB_SENTRY_ENV"),
		},
	}
}

// Configure initializes the Sentry client. The returned function flushes
// buffered events and is safe to call when Sentry is disabled.
func (c *Sentry) Configure() (func(), error) {
	if c.DSN == "" {
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Environment,
		Release:     types.ServiceName + "@" + types.Version,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize Sentry", goerr.V("env", c.Environment))
	}

	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}
