package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/app"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/config"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/logger"
)

func main() {
	// Local convenience; in deployment the environment is already set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// No logger yet; exit immediately.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	// Ensure logger flush; ignore sync error (common on some platforms).
	defer func() { _ = log.Sync() }()

	if err := app.New(cfg, log).Run(context.Background()); err != nil {
		log.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}
