package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env"
)

type Config struct {
	ServerAddr          string `env:"RUN_ADDRESS"`
	LogLevel            string `env:"LOG_LEVEL"`
	LogFormat           string `env:"LOG_FORMAT"`
	DatabaseURI         string `env:"DATABASE_URI"`
	JWTSecretKey        string `env:"JWT_SECRET_KEY"`
	NotifyWebhookURL    string `env:"NOTIFY_WEBHOOK_URL"`
	FCMCredentialsFile  string `env:"FCM_CREDENTIALS_FILE"`
	FCMProjectID        string `env:"FCM_PROJECT_ID"`
	RentalSweepSchedule string `env:"RENTAL_SWEEP_SCHEDULE"`
	TxMaxAttempts       int    `env:"TX_MAX_ATTEMPTS"`
}

func NewConfig() (Config, error) {
	return parse(flag.CommandLine, nil)
}

func parse(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}

	fs.StringVar(&cfg.ServerAddr, "a", "0.0.0.0:8080", "server listening address [env:RUN_ADDRESS]")
	fs.StringVar(&cfg.LogLevel, "l", "info", "log output level [env:LOG_LEVEL]")
	fs.StringVar(&cfg.LogFormat, "f", "json", "log output format, json or text [env:LOG_FORMAT]")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "database connection string, in-memory store when empty [env:DATABASE_URI]")
	fs.StringVar(&cfg.JWTSecretKey, "s", "secretkey", "JWT secret to verify tokens [env:JWT_SECRET_KEY]")
	fs.StringVar(&cfg.NotifyWebhookURL, "w", "", "notification webhook URL [env:NOTIFY_WEBHOOK_URL]")
	fs.StringVar(&cfg.FCMCredentialsFile, "fcm-credentials", "", "FCM service account file [env:FCM_CREDENTIALS_FILE]")
	fs.StringVar(&cfg.FCMProjectID, "fcm-project", "", "FCM project id [env:FCM_PROJECT_ID]")
	fs.StringVar(&cfg.RentalSweepSchedule, "r", "@every 1m", "rental expiry sweep cron schedule [env:RENTAL_SWEEP_SCHEDULE]")
	fs.IntVar(&cfg.TxMaxAttempts, "t", 5, "attempts per ledger transaction on conflicts [env:TX_MAX_ATTEMPTS]")

	if fs == flag.CommandLine {
		flag.Parse()
	} else if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("fs.Parse: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env.Parse: %w", err)
	}

	return cfg, nil
}
