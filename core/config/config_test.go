package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("TENANT_ID", "")
	t.Setenv("APP_BASE_DIR", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.App.DefaultTenantID)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, filepath.Join("storages", "whatspy.db"), cfg.Database.Name)
	assert.Equal(t, "https://graph.facebook.com/v21.0", cfg.WhatsApp.GraphAPIURL())
	assert.Equal(t, 30, cfg.Retention.WebhookLogDays)
	assert.Same(t, cfg, Global)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("TENANT_ID", "acme")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_NAME", "")
	t.Setenv("VALKEY_ENABLED", "yes")
	t.Setenv("WS_WRITE_TIMEOUT_MS", "250")
	t.Setenv("WHATSAPP_API_BASE_URL", "http://localhost:9999/")
	t.Setenv("WHATSAPP_API_VERSION", "v19.0")
	t.Setenv("MESSAGE_WORKER_POOL_SIZE", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.App.DefaultTenantID)
	assert.Equal(t, "whatspy", cfg.Database.Name)
	assert.True(t, cfg.Valkey.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.WebSocket.WriteTimeout)
	assert.Equal(t, "http://localhost:9999/v19.0", cfg.WhatsApp.GraphAPIURL())
	assert.Equal(t, 8, cfg.WorkerPool.Size)
	assert.Equal(t, 30*time.Second, cfg.WorkerPool.JobTimeout)

	settings := GetAllSettings()
	assert.Equal(t, "acme", settings["default_tenant_id"])
}
