package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/accountmart/internal/config"
	"github.com/andymarkow/accountmart/internal/notify"
	"github.com/andymarkow/accountmart/internal/storage/inmemory"
)

func TestNewStorage_InMemoryWithoutDatabase(t *testing.T) {
	store, err := newStorage(context.Background(), config.Config{TxMaxAttempts: 3}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.IsType(t, &inmemory.Storage{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewNotifier(t *testing.T) {
	logg := slog.New(slog.DiscardHandler)

	t.Run("LogOnly", func(t *testing.T) {
		n, err := newNotifier(context.Background(), config.Config{}, logg)
		require.NoError(t, err)
		assert.IsType(t, &notify.Log{}, n)
	})

	t.Run("WithWebhook", func(t *testing.T) {
		n, err := newNotifier(context.Background(), config.Config{NotifyWebhookURL: "http://127.0.0.1:1/hook"}, logg)
		require.NoError(t, err)

		multi, ok := n.(notify.Multi)
		require.True(t, ok)
		require.Len(t, multi, 2)
		assert.IsType(t, &notify.Webhook{}, multi[1])
	})

	t.Run("BadFCMCredentials", func(t *testing.T) {
		_, err := newNotifier(context.Background(), config.Config{
			FCMProjectID:       "proj",
			FCMCredentialsFile: t.TempDir() + "/missing.json",
		}, logg)
		assert.Error(t, err)
	})
}
