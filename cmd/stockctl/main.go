package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stock-ledger/internal/adapters/cli"
	"stock-ledger/internal/app"
	"stock-ledger/internal/config"
	"stock-ledger/internal/observability"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML config file")
	actor := flag.String("actor", "", "identity recorded on movements (defaults to cli:$USER)")
	flag.Parse()

	if *actor == "" {
		*actor = "cli:" + os.Getenv("USER")
	}

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	log, err := observability.NewLogger(cfg.App.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}
	// Command output goes to stdout; the log only carries warnings and errors.
	log = log.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		return 1
	}
	defer rt.Close()

	if err := cli.Run(ctx, rt.Service, *actor, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, cli.Describe(err))
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
