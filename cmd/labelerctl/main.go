package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"labeler_server/config"
	"labeler_server/core/port/in"
	"labeler_server/internal/bootstrap"
	"labeler_server/internal/cli"
	"labeler_server/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "labelerctl",
		Output:  os.Stderr,
		Console: true,
	})

	open := func(ctx context.Context) (in.ClassifierService, func(), error) {
		stores, cleanup, err := bootstrap.OpenStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		svc, err := bootstrap.NewClassifier(ctx, cfg, stores.Store)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return svc, cleanup, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCmd(open, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
