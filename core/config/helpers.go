package config

import (
	"os"
	"strconv"
	"strings"
)

// GetAllSettings returns the non-secret settings currently loaded in memory.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":                Global.App.Version,
		"app_debug":                  Global.App.Debug,
		"default_tenant_id":          Global.App.DefaultTenantID,
		"database_driver":            Global.Database.Driver,
		"valkey_enabled":             Global.Valkey.Enabled,
		"whatsapp_api_version":       Global.WhatsApp.GraphAPIVersion,
		"validate_signatures":        Global.WhatsApp.ValidateSignatures,
		"auto_reply":                 Global.WhatsApp.AutoReply,
		"worker_pool_size":           Global.WorkerPool.Size,
		"worker_queue_size":          Global.WorkerPool.QueueSize,
		"webhook_log_retention_days": Global.Retention.WebhookLogDays,
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}
