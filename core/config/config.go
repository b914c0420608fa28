package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	Valkey     ValkeyConfig
	WhatsApp   WhatsAppConfig
	Auth       AuthConfig
	WorkerPool WorkerPoolConfig
	WebSocket  WebSocketConfig
	Retention  RetentionConfig
	Security   SecurityConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
	ServerID           string
	DefaultTenantID    string
}

type PathsConfig struct {
	Storages string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB Name for Postgres
}

type ValkeyConfig struct {
	Enabled   bool
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// WhatsAppConfig holds the global Cloud API credentials. Tenants can
// override them through their stored tenant config.
type WhatsAppConfig struct {
	GraphAPIVersion    string
	GraphAPIBaseURL    string
	PhoneNumberID      string
	AccessToken        string
	VerifyToken        string
	AppSecret          string
	ValidateSignatures bool
	AutoReply          bool
	RequestTimeout     time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	JWTTTL            time.Duration
	AllowTenantHeader bool
	AdminUsername     string
	AdminPassword     string
}

type WorkerPoolConfig struct {
	Size       int
	QueueSize  int
	JobTimeout time.Duration
}

type WebSocketConfig struct {
	WriteTimeout    time.Duration
	NotifyQueueSize int
}

type RetentionConfig struct {
	WebhookLogDays int
	CleanupSpec    string
}

type SecurityConfig struct {
	SecretKey string
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	debug := false
	if v := os.Getenv("APP_DEBUG"); v == "true" || v == "1" || v == "on" {
		debug = true
	} else if v := os.Getenv("DEBUG"); v == "true" || v == "1" {
		debug = true
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "8000"),
		Debug:              debug,
		Environment:        getEnv("APP_ENV", "development"),
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:8000"),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
		DefaultTenantID:    getEnv("TENANT_ID", "default"),
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		Storages: getEnv("APP_BASE_DIR", "storages"),
	}

	dbDriver := getEnv("DB_DRIVER", "sqlite")
	dbName := getEnv("DB_NAME", "")
	if dbName == "" {
		if dbDriver == "postgres" {
			dbName = "whatspy"
		} else {
			dbName = filepath.Join(pathsCfg.Storages, "whatspy.db")
		}
	}
	dbCfg := DatabaseConfig{
		Driver:   dbDriver,
		Name:     dbName,
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
	}

	vkCfg := ValkeyConfig{
		Enabled:   getEnvBool("VALKEY_ENABLED", false),
		Address:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		Password:  getEnv("VALKEY_PASSWORD", ""),
		DB:        getEnvInt("VALKEY_DB", 0),
		KeyPrefix: getEnv("VALKEY_KEY_PREFIX", "whatspy:"),
	}

	waCfg := WhatsAppConfig{
		GraphAPIVersion:    getEnv("WHATSAPP_API_VERSION", "v21.0"),
		GraphAPIBaseURL:    getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com"),
		PhoneNumberID:      getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		AccessToken:        getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		VerifyToken:        getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		AppSecret:          getEnv("WHATSAPP_APP_SECRET", ""),
		ValidateSignatures: getEnvBool("WHATSAPP_VALIDATE_SIGNATURES", false),
		AutoReply:          getEnvBool("WHATSAPP_AUTO_REPLY", false),
		RequestTimeout:     time.Duration(getEnvInt("WHATSAPP_REQUEST_TIMEOUT_SEC", 15)) * time.Second,
	}

	authCfg := AuthConfig{
		JWTSecret:         getEnv("JWT_SECRET_KEY", "changeme_please_change_me_in_prod_12345"),
		JWTTTL:            time.Duration(getEnvInt("JWT_EXPIRE_MINUTES", 24*60)) * time.Minute,
		AllowTenantHeader: getEnvBool("AUTH_ALLOW_TENANT_HEADER", true),
		AdminUsername:     getEnv("ADMIN_USERNAME", ""),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
	}

	cfg := &Config{
		App:        appCfg,
		Paths:      pathsCfg,
		Database:   dbCfg,
		Valkey:     vkCfg,
		WhatsApp:   waCfg,
		Auth:       authCfg,
		WorkerPool: WorkerPoolConfig{
			Size:       getEnvInt("MESSAGE_WORKER_POOL_SIZE", 8),
			QueueSize:  getEnvInt("MESSAGE_WORKER_QUEUE_SIZE", 500),
			JobTimeout: time.Duration(getEnvInt("MESSAGE_WORKER_JOB_TIMEOUT_SEC", 30)) * time.Second,
		},
		WebSocket: WebSocketConfig{
			WriteTimeout:    time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 5000)) * time.Millisecond,
			NotifyQueueSize: getEnvInt("WS_NOTIFY_QUEUE_SIZE", 1024),
		},
		Retention: RetentionConfig{
			WebhookLogDays: getEnvInt("WEBHOOK_LOG_RETENTION_DAYS", 30),
			CleanupSpec:    getEnv("WEBHOOK_LOG_CLEANUP_CRON", "0 3 * * *"),
		},
		Security: SecurityConfig{SecretKey: getEnv("APP_SECRET_KEY", "")},
	}

	Global = cfg
	return cfg, nil
}

// GraphAPIURL returns the versioned Graph API root, e.g. https://graph.facebook.com/v21.0
func (c WhatsAppConfig) GraphAPIURL() string {
	return strings.TrimRight(c.GraphAPIBaseURL, "/") + "/" + c.GraphAPIVersion
}
