package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spherical/pdf2md/cmd/pdf2md/commands"
)

func main() {
	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
