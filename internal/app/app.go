package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andymarkow/accountmart/internal/config"
	"github.com/andymarkow/accountmart/internal/logger"
	"github.com/andymarkow/accountmart/internal/market"
	"github.com/andymarkow/accountmart/internal/notify"
	"github.com/andymarkow/accountmart/internal/rentals"
	"github.com/andymarkow/accountmart/internal/server"
	"github.com/andymarkow/accountmart/internal/storage"
	"github.com/andymarkow/accountmart/internal/storage/inmemory"
	"github.com/andymarkow/accountmart/internal/storage/pgstorage"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	log     *slog.Logger
	store   storage.Storage
	server  *server.Server
	sweeper *rentals.Sweeper
}

func New(ctx context.Context) (*Application, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config.NewConfig: %w", err)
	}

	logLevel, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogLevel: %w", err)
	}

	logFormat, err := logger.ParseLogFormat(cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogFormat: %w", err)
	}

	logg := logger.NewLogger(
		logger.WithLevel(logLevel),
		logger.WithFormat(logFormat),
		logger.WithAddSource(false),
	)

	store, err := newStorage(ctx, cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("newStorage: %w", err)
	}

	notifier, err := newNotifier(ctx, cfg, logg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("newNotifier: %w", err), store.Close())
	}

	engine := market.NewEngine(
		market.WithLogger(logg),
		market.WithNotifier(notifier),
	)

	srv, err := server.NewServer(
		store,
		engine,
		server.WithServerAddr(cfg.ServerAddr),
		server.WithJWTSecretKey([]byte(cfg.JWTSecretKey)),
		server.WithLogger(logg),
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("server.NewServer: %w", err), store.Close())
	}

	sweeper := rentals.New(
		store,
		engine,
		rentals.WithLogger(logg),
		rentals.WithSchedule(cfg.RentalSweepSchedule),
	)

	return &Application{
		log:     logg.With(slog.String("module", "app")),
		store:   store,
		server:  srv,
		sweeper: sweeper,
	}, nil
}

// newStorage picks Postgres when a connection string is configured and the
// in-memory store otherwise.
func newStorage(ctx context.Context, cfg config.Config, logg *slog.Logger) (storage.Storage, error) {
	if cfg.DatabaseURI == "" {
		logg.Info("Using in-memory storage")

		return storage.NewStorage(inmemory.NewStorage(inmemory.WithMaxAttempts(cfg.TxMaxAttempts))), nil
	}

	pgstore, err := pgstorage.NewStorage(cfg.DatabaseURI,
		pgstorage.WithLogger(logg),
		pgstorage.WithTxRetry(cfg.TxMaxAttempts, 20*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("pgstorage.NewStorage: %w", err)
	}

	if err := pgstore.Bootstrap(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("pgstore.Bootstrap: %w", err), pgstore.Close())
	}

	return storage.NewStorage(pgstore), nil
}

// newNotifier always logs events and fans them out to every configured sink.
func newNotifier(ctx context.Context, cfg config.Config, logg *slog.Logger) (notify.Notifier, error) {
	sinks := notify.Multi{notify.NewLog(logg)}

	if cfg.NotifyWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.NotifyWebhookURL, notify.WithWebhookLogger(logg)))
	}

	if cfg.FCMCredentialsFile != "" {
		fcm, err := notify.NewFCM(ctx, cfg.FCMProjectID, cfg.FCMCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("notify.NewFCM: %w", err)
		}

		sinks = append(sinks, fcm)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}

	return sinks, nil
}

func (a *Application) Run() error {
	errChan := make(chan error, 2)

	go func() {
		if err := a.server.Start(); err != nil {
			errChan <- fmt.Errorf("server.Start: %w", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeperDone := make(chan struct{})

	go func() {
		defer close(sweeperDone)

		if err := a.sweeper.Run(ctx); err != nil {
			errChan <- fmt.Errorf("sweeper.Run: %w", err)
		}
	}()

	// Graceful shutdown handler
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	var runErr error

	select {
	case runErr = <-errChan:
	case <-quit:
		a.log.Info("Gracefully shutting down application...")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}

	<-sweeperDone

	if err := a.store.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("store.Close: %w", err))
	}

	return runErr
}
