// Command httpkit fetches, uploads and downloads with the httpkit client
// and runs the stub development server.
//
//	httpkit serve [-files dir]
//	httpkit fetch [-X method] [-H key:value]... [-json object] [-envelope] url
//	httpkit upload [-F key=value]... [-f field=path]... url
//	httpkit download [-o path] [-sha256 hex] [-token file] url
//	httpkit resume [-o path] token-file
//
// Configuration is read from HTTPKIT_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamwoolhether/httpkit/errs"
)

var errUsage = errors.New("usage: httpkit serve|fetch|upload|download|resume [flags] [args]")

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := cfg.logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1:]); err != nil {
		var te *errs.TransportError
		if errors.As(err, &te) {
			log.Error("request failed", "error", te.Description())
		} else {
			log.Error("httpkit", "error", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, log *slog.Logger, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "serve":
		return serve(ctx, cfg, log, rest)
	case "fetch":
		return fetch(ctx, cfg, log, rest)
	case "upload":
		return upload(ctx, cfg, log, rest)
	case "download":
		return download(ctx, cfg, log, rest)
	case "resume":
		return resume(ctx, cfg, log, rest)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}
