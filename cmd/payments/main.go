package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Evgen-Mutagen/payments-backend/internal/app"
	"github.com/Evgen-Mutagen/payments-backend/internal/util/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := app.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync() //nolint:errcheck

	application, err := app.New(cfg, logger.Log)
	if err != nil {
		logger.Log.Fatal("Application initialization failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Log.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Log.Info("Server stopped")
}
