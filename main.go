package main

import (
	"context"
	"errors"
	"os"

	"github.com/m-mizutani/annodb/pkg/cli"
)

func main() {
	if err := cli.Run(context.Background(), os.Args); err != nil {
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}
