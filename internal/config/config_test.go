package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("NOTIFY_DELIVERY_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DeliveryInline, cfg.Notification.DeliveryMode)
	assert.False(t, cfg.Notification.Async())
	assert.Equal(t, "migrations", cfg.Postgres.MigrationsDir)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoadAsyncMode(t *testing.T) {
	t.Setenv("NOTIFY_DELIVERY_MODE", "ASYNC")
	t.Setenv("NOTIFY_UNREAD_CACHE_TTL_SECONDS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Notification.Async())
	assert.Equal(t, 5*time.Second, cfg.Notification.UnreadCacheTTL())
}

func TestLoadRejectsUnknownDeliveryMode(t *testing.T) {
	t.Setenv("NOTIFY_DELIVERY_MODE", "carrier-pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("AUTH_BCRYPT_COST", "lots")
	assert.Equal(t, 12, getEnvAsInt("AUTH_BCRYPT_COST", 12))
	t.Setenv("NOTIFY_EMBEDDED_WORKER", "maybe")
	assert.False(t, getEnvAsBool("NOTIFY_EMBEDDED_WORKER", false))
}
