package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.DatabaseURI)
	assert.Equal(t, "@every 1m", cfg.RentalSweepSchedule)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
}

func TestParse_EnvOverridesFlags(t *testing.T) {
	t.Setenv("RUN_ADDRESS", "127.0.0.1:9000")
	t.Setenv("TX_MAX_ATTEMPTS", "9")
	t.Setenv("NOTIFY_WEBHOOK_URL", "http://hooks.local/events")

	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-a", "0.0.0.0:1", "-l", "debug"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9, cfg.TxMaxAttempts)
	assert.Equal(t, "http://hooks.local/events", cfg.NotifyWebhookURL)
}
