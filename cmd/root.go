package cmd

import (
	"context"
	"os"
	"time"

	campaignsApp "github.com/whatspy/whatspy/campaigns/application"
	campaignsRepo "github.com/whatspy/whatspy/campaigns/repository"
	contactsApp "github.com/whatspy/whatspy/contacts/application"
	contactsRepo "github.com/whatspy/whatspy/contacts/repository"
	coreconfig "github.com/whatspy/whatspy/core/config"
	coreDB "github.com/whatspy/whatspy/core/database"
	"github.com/whatspy/whatspy/infrastructure/graphapi"
	"github.com/whatspy/whatspy/infrastructure/valkey"
	messagingApp "github.com/whatspy/whatspy/messaging/application"
	messagingRepo "github.com/whatspy/whatspy/messaging/repository"
	"github.com/whatspy/whatspy/pkg/crypto"
	"github.com/whatspy/whatspy/pkg/metrics"
	"github.com/whatspy/whatspy/pkg/msgworker"
	"github.com/whatspy/whatspy/pkg/utils"
	tenantsApp "github.com/whatspy/whatspy/tenants/application"
	tenantsRepo "github.com/whatspy/whatspy/tenants/repository"
	"github.com/whatspy/whatspy/tenants/security"
	"github.com/whatspy/whatspy/ui/websocket"
	webhooksApp "github.com/whatspy/whatspy/webhooks/application"
	webhooksRepo "github.com/whatspy/whatspy/webhooks/repository"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var (
	db       *gorm.DB
	vkClient *valkey.Client
	serverID string

	messageRepo  *messagingRepo.MessageGormRepository
	templateRepo *messagingRepo.TemplateGormRepository
	campaignRepo *campaignsRepo.CampaignGormRepository

	// Infra
	hub        *websocket.Hub
	pool       *msgworker.Pool
	issuer     *security.Issuer
	graphCli   *graphapi.Client
	retention  *webhooksApp.RetentionJob
	cancelRoot context.CancelFunc

	// Services
	configService   *tenantsApp.ConfigService
	authService     *tenantsApp.AuthService
	messageService  *messagingApp.MessageService
	templateService *messagingApp.TemplateService
	contactService  *contactsApp.ContactService
	campaignService *campaignsApp.CampaignService
	logService      *webhooksApp.LogService
	ingestor        *webhooksApp.Ingestor
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "whatspy",
	Short: "Multi-tenant WhatsApp Cloud API backend",
	Long: `whatspy receives WhatsApp Cloud API webhooks, stores every message per tenant
and pushes them in real time to chat UIs over WebSocket.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Initialize flags first, before any subcommands are added
	initFlags()

	cobra.OnInitialize(initEnvConfig)
}

func initFlags() {
	flags := rootCmd.PersistentFlags()

	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "hide or displaying log with --debug <true/false> | example: --debug=true")
	flags.String("base-path", "", `base path for subpath deployment --base-path <string> | example: --base-path="/whatspy"`)
	flags.StringSlice("trusted-proxies", nil, `trusted proxy IP ranges --trusted-proxies <string> | example: --trusted-proxies="10.0.0.0/8,172.16.0.0/12"`)
	flags.String("db-driver", "", `database driver (sqlite|postgres) --db-driver <string> | example: --db-driver=postgres`)
	flags.Bool("auto-reply", false, `answer greeting and /help, /ping, /status keywords --auto-reply <true/false>`)
	flags.Bool("validate-signatures", false, `reject webhooks without a valid X-Hub-Signature-256 --validate-signatures <true/false>`)
	flags.Int("message-workers", 0, `number of concurrent webhook workers --message-workers <number> | example: --message-workers=16 (default: 8)`)
	flags.Int("message-queue-size", 0, `queue size per webhook worker --message-queue-size <number> | example: --message-queue-size=1000 (default: 500)`)

	bind := map[string]string{
		"app_port":                     "port",
		"app_debug":                    "debug",
		"app_base_path":                "base-path",
		"app_trusted_proxies":          "trusted-proxies",
		"db_driver":                    "db-driver",
		"whatsapp_auto_reply":          "auto-reply",
		"whatsapp_validate_signatures": "validate-signatures",
		"message_worker_pool_size":     "message-workers",
		"message_worker_queue_size":    "message-queue-size",
	}
	for key, flag := range bind {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logrus.Fatalf("[CONFIG] failed to bind flag %s: %v", flag, err)
		}
	}
}

// initEnvConfig builds the config from the environment, then applies flags
func initEnvConfig() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] failed to load config: %v", err)
	}

	if viper.IsSet("app_port") && viper.GetString("app_port") != "" {
		cfg.App.Port = viper.GetString("app_port")
	}
	if viper.IsSet("app_debug") && viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if viper.IsSet("app_base_path") && viper.GetString("app_base_path") != "" {
		cfg.App.BasePath = viper.GetString("app_base_path")
	}
	if proxies := viper.GetStringSlice("app_trusted_proxies"); len(proxies) > 0 {
		cfg.App.TrustedProxies = proxies
	}
	if viper.IsSet("db_driver") && viper.GetString("db_driver") != "" {
		cfg.Database.Driver = viper.GetString("db_driver")
	}
	if viper.IsSet("whatsapp_auto_reply") {
		cfg.WhatsApp.AutoReply = viper.GetBool("whatsapp_auto_reply")
	}
	if viper.IsSet("whatsapp_validate_signatures") {
		cfg.WhatsApp.ValidateSignatures = viper.GetBool("whatsapp_validate_signatures")
	}
	if n := viper.GetInt("message_worker_pool_size"); n > 0 {
		cfg.WorkerPool.Size = n
	}
	if n := viper.GetInt("message_worker_queue_size"); n > 0 {
		cfg.WorkerPool.QueueSize = n
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// initStorage opens the database and runs the schema migrations. Every
// command that touches persistence calls it first.
func initStorage() {
	cfg := coreconfig.Global

	// preparing folder if not exist
	if err := utils.CreateFolder(cfg.Paths.Storages); err != nil {
		logrus.Errorln(err)
	}

	var err error
	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[DB] %v", err)
	}

	box, err := crypto.NewBox(cfg.Security.SecretKey)
	if err != nil {
		logrus.Fatalf("[SECURITY] %v", err)
	}
	if !box.Enabled() {
		logrus.Warn("[SECURITY] APP_SECRET_KEY is not set; tenant secrets are stored in plain text")
	}

	tenantRepo := tenantsRepo.NewTenantConfigGormRepository(db, box)
	adminRepo := tenantsRepo.NewAdminGormRepository(db)
	messageRepo = messagingRepo.NewMessageGormRepository(db)
	templateRepo = messagingRepo.NewTemplateGormRepository(db)
	contactRepo := contactsRepo.NewContactGormRepository(db)
	logRepo := webhooksRepo.NewLogGormRepository(db)
	campaignRepo = campaignsRepo.NewCampaignGormRepository(db)

	if err := coreDB.Migrate(tenantRepo, adminRepo, messageRepo, templateRepo, contactRepo, logRepo, campaignRepo); err != nil {
		logrus.Fatalf("[DB] %v", err)
	}

	issuer = security.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	configService = tenantsApp.NewConfigService(tenantRepo, tenantsApp.Defaults{
		TenantID:      cfg.App.DefaultTenantID,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		VerifyToken:   cfg.WhatsApp.VerifyToken,
		AppSecret:     cfg.WhatsApp.AppSecret,
	})
	authService = tenantsApp.NewAuthService(adminRepo, issuer)
	contactService = contactsApp.NewContactService(contactRepo)
	logService = webhooksApp.NewLogService(logRepo)
}

// initApp builds the runtime pieces used by the rest server: the hub, the
// worker pool, the Graph API client and the webhook pipeline.
func initApp() {
	cfg := coreconfig.Global
	initStorage()

	id, source, err := utils.NodeID(cfg.App.ServerID, cfg.Paths.Storages)
	if err != nil {
		logrus.WithError(err).Warn("[APP] Node id could not be saved, it will change on restart")
	}
	serverID = id
	logrus.WithFields(logrus.Fields{"server_id": serverID, "source": source}).Info("[APP] Node identity resolved")

	metrics.Init()

	hubCfg := websocket.HubConfig{
		QueueSize: cfg.WebSocket.NotifyQueueSize,
		ServerID:  serverID,
	}
	if cfg.Valkey.Enabled {
		client, err := valkey.NewClient(valkey.Config{
			Address:   cfg.Valkey.Address,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			logrus.WithError(err).Warn("[VALKEY] Unavailable, WebSocket events stay on this node")
		} else {
			vkClient = client
			hubCfg.PubSub = client
			hubCfg.Channel = client.Key("ws", "events")
		}
	}
	hub = websocket.NewHub(hubCfg)

	pool = msgworker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool.JobTimeout = cfg.WorkerPool.JobTimeout
	pool.OnJobStart = func(int, string) { metrics.WorkerBusy.Inc() }
	pool.OnJobEnd = func(int, string, error) { metrics.WorkerBusy.Dec() }
	pool.OnDrop = func(string) { metrics.WorkerDropped.Inc() }

	graphCli = graphapi.NewClient(cfg.WhatsApp.GraphAPIURL(), cfg.WhatsApp.RequestTimeout)

	messageService = messagingApp.NewMessageService(messageRepo, graphCli, configService, hub)
	templateService = messagingApp.NewTemplateService(templateRepo, messageService)
	campaignService = campaignsApp.NewCampaignService(campaignRepo, messageService, pool)

	ingestor = webhooksApp.NewIngestor(webhooksApp.IngestorConfig{
		ValidateSignatures: cfg.WhatsApp.ValidateSignatures,
		AutoReply:          cfg.WhatsApp.AutoReply,
	}, configService, messageService, contactService, logService, hub, pool)

	retention = webhooksApp.NewRetentionJob(logService, cfg.Retention.CleanupSpec, cfg.Retention.WebhookLogDays)

	ctx := context.Background()
	if err := authService.EnsureBootstrapAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, configService.DefaultTenantID()); err != nil {
		logrus.WithError(err).Error("[AUTH] Failed to create bootstrap admin")
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of all connections and background services.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if retention != nil {
		retention.Stop()
	}

	// 1. Drain queued webhook jobs before closing the database
	if pool != nil {
		pool.Stop()
	}

	// 2. Stop the hub loop (closes every socket)
	if cancelRoot != nil {
		cancelRoot()
	}

	if vkClient != nil {
		vkClient.Close()
	}

	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
