package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/betogram/smworker"
	"github.com/betogram/smworker/logging"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("smworker %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", smworker.EnvOr("SM_WORKER_CONFIG", ""), "path to a YAML/TOML/JSON config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := smworker.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running server", zap.String("version", version))
	app := smworker.New(cfg, smworker.WithLogger(logger))
	return app.Start(ctx)
}

func printUsage() {
	fmt.Println(`smworker - serves meta-tag pages to social media crawlers in front of a single-page app

Usage:
  smworker <command> [arguments]

Commands:
  serve [-config path]   Start the HTTP server
  version                Print the smworker version
  help                   Show this help message

Environment:
  SM_WORKER_PORT         Listen port (default 5000)
  SM_WORKER_CONFIG       Config file path, same as -config
  SM_WORKER_<KEY>        Any config key, dots replaced by underscores`)
}
