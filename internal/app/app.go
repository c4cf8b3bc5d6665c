// Package app wires configuration, storage, the countdown engine and the
// HTTP API into one runnable process.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/auth"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/config"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/engine"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/notify"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/server"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/store"
)

type App struct {
	cfg config.Config
	log *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *App {
	return &App{cfg: cfg, log: log}
}

// Run starts the service and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting safelyd",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("db", a.cfg.DBPath),
	)

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	defer func() { _ = repo.Close() }()
	a.log.Info("sqlite ready")

	rich, baseline := a.channels()
	dispatcher := notify.NewDispatcher(a.log, rich, baseline)
	runner := engine.NewRunner(repo, a.log, dispatcher, time.Second)
	if err := runner.Resume(ctx); err != nil {
		a.log.Error("engine resume failed", zap.Error(err))
		return err
	}

	authSvc := auth.NewService(repo, a.log, a.cfg.SessionTTL)
	srv := server.New(a.log, repo, authSvc, runner, a.cfg.DefaultCountryCode, a.cfg.DemoDurationMinutes)

	httpSrv := &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineCtx, cancelEngine := context.WithCancel(context.Background())
	defer cancelEngine()
	go runner.Run(engineCtx)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	cancelEngine()
	return nil
}

// channels builds the notification channels from config. Without Twilio
// credentials both channels drop messages, with a warning at startup.
func (a *App) channels() (rich, baseline notify.Channel) {
	wa, err := notify.NewWhatsAppChannel(a.cfg.TwilioAccountSID, a.cfg.TwilioAuthToken, a.cfg.TwilioWhatsAppFrom)
	if err != nil {
		a.log.Warn("whatsapp channel disabled", zap.Error(err))
		rich = notify.NoopChannel{}
	} else {
		rich = wa
	}
	sms, err := notify.NewSMSChannel(a.cfg.TwilioAccountSID, a.cfg.TwilioAuthToken, a.cfg.TwilioSMSFrom)
	if err != nil {
		a.log.Warn("sms channel disabled", zap.Error(err))
		baseline = notify.NoopChannel{}
	} else {
		baseline = sms
	}
	return rich, baseline
}
