// Command fetchr downloads URLs through the fetchr backends.
//
//	fetchr get https://example.com/file.tar.gz
//	fetchr get --jobs 8 --dir ./out URL...
//	fetchr backends
//	fetchr proxy https://example.com
//
// Settings are read from an optional YAML file (--config), FETCHR_*
// environment variables and flags, in increasing precedence.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	if err != nil {
		slog.Error("fetchr failed", "error", err)
		os.Exit(1)
	}
}
