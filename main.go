package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"labeler_server/config"
	"labeler_server/internal/bootstrap"
	"labeler_server/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "labeler",
		Console: cfg.IsDevelopment(),
	})
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := bootstrap.NewAPI(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize API: %v", err)
	}
	defer cleanup()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down API server (timeout: %v)", cfg.ShutdownTimeout)
		if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
			logger.WithError(err).Error("error shutting down")
		}
	}()

	addr := ":" + cfg.Port
	logger.WithFields(map[string]any{
		"addr":  addr,
		"store": cfg.Store.Backend,
	}).Info("starting API server")
	if err := app.Listen(addr); err != nil {
		logger.WithError(err).Error("server stopped")
		cleanup()
		os.Exit(1)
	}
	logger.Info("API server shut down gracefully")
}
