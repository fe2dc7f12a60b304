package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pgm9-art/mcmahon-news/internal/app"
	"github.com/pgm9-art/mcmahon-news/internal/config"
	"github.com/pgm9-art/mcmahon-news/internal/logging"
)

func main() {
	cfg := config.Load()

	application, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("Shutdown error", logging.WithError(err))
	}

	if runErr != nil {
		application.Logger.Error("Application error", logging.WithError(runErr))
		os.Exit(1)
	}
	application.Logger.Info("Shutdown complete")
}
