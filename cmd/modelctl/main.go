// Package main provides modelctl, a command line client for inspecting
// tables through record types.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-model/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	exitCode := cli.Run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()

	os.Exit(exitCode)
}
