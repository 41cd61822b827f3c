package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Server holds server configuration
type Server struct {
	Addr            string
	RateLimit       int
	ShutdownTimeout time.Duration
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("ANNODB_ADDR"),
		},
		&cli.IntFlag{
			Name:        "rate-limit",
			Usage:       "Maximum /api requests per client IP and minute (0 disables)",
			Value:       600,
			Destination: &c.RateLimit,
			Sources:     cli.EnvVars("ANNODB_RATE_LIMIT"),
		},
		&cli.DurationFlag{
			Name:        "shutdown-timeout",
			Usage:       "Grace period for in-flight requests on shutdown",
			Value:       10 * time.Second,
			Destination: &c.ShutdownTimeout,
			Sources:     cli.EnvVars("ANNODB_SHUTDOWN_TIMEOUT"),
		},
	}
}
