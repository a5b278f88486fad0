package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmorgan81/visualizer/internal/inject"
	"github.com/dmorgan81/visualizer/internal/log"
	"github.com/dmorgan81/visualizer/internal/web"
	"github.com/joho/godotenv"
	"github.com/samber/do"
)

func main() {
	// .env is optional; real environment variables win.
	envErr := godotenv.Load()

	logger := log.New(os.Stderr, log.ParseLevel(os.Getenv("LOG_LEVEL")))
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.NewContext(ctx, logger)

	injector := inject.Setup(ctx)
	defer func() { _ = injector.Shutdown() }()

	if token := do.MustInvokeNamed[string](injector, "hf_token"); token == "" {
		logger.Warn("HF_TOKEN is not configured; generation requests will be rejected")
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	if err := do.MustInvoke[*web.Server](injector).Run(ctx, addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
