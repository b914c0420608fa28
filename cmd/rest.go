package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	campaignsRest "github.com/whatspy/whatspy/campaigns/adapter/rest"
	contactsRest "github.com/whatspy/whatspy/contacts/adapter/rest"
	coreconfig "github.com/whatspy/whatspy/core/config"
	messagingRest "github.com/whatspy/whatspy/messaging/adapter/rest"
	"github.com/whatspy/whatspy/pkg/metrics"
	"github.com/whatspy/whatspy/pkg/utils"
	tenantsRest "github.com/whatspy/whatspy/tenants/adapter/rest"
	"github.com/whatspy/whatspy/ui/rest"
	"github.com/whatspy/whatspy/ui/rest/middleware"
	"github.com/whatspy/whatspy/ui/websocket"
	webhooksRest "github.com/whatspy/whatspy/webhooks/adapter/rest"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the webhook receiver, REST API and WebSocket hub",
	Long:  `Starts the HTTP server: Meta webhook endpoints, the tenant REST API under /api and live chat updates on /ws/:tenant_id`,
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	initApp()
	cfg := coreconfig.Global

	app := newRestApp(cfg)

	var ctx context.Context
	ctx, cancelRoot = context.WithCancel(context.Background())

	go hub.Run(ctx)
	pool.Start(ctx)
	if err := retention.Start(); err != nil {
		logrus.WithError(err).Errorf("[WEBHOOK_LOG] Invalid cleanup schedule %q, retention job disabled", cfg.Retention.CleanupSpec)
	}

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}

	// Listen returns once the server is shut down
	StopApp()
}

func newRestApp(cfg *coreconfig.Config) *fiber.App {
	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		BodyLimit:               20 * 1024 * 1024,
		Network:                 "tcp",
		AppName:                 "whatspy",
		ServerHeader:            "Hidden",
	}

	// Configure proxy settings if trusted proxies are specified
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())

	origins := strings.Join(cfg.App.CorsAllowedOrigins, ", ")
	if cfg.App.BaseUrl != "" && !strings.Contains(origins, cfg.App.BaseUrl) {
		origins += ", " + cfg.App.BaseUrl
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Tenant-Id, X-Request-ID",
	}))
	app.Use(middleware.Recovery())

	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            31536000,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		// Meta reintenta en ráfagas; el webhook no pasa por el limiter
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/webhook")
		},
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	root := app.Group(cfg.App.BasePath)

	root.Get("/metrics", metrics.Handler())

	// Meta webhooks (public, signature checked by the ingestor)
	webhooksRest.NewWebhookHandler(ingestor).RegisterRoutes(root)

	websocket.RegisterRoutes(root, hub, websocket.HandlerConfig{
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		Validator:    issuer,
		RequireToken: !cfg.Auth.AllowTenantHeader,
	})

	apiGroup := root.Group("/api")

	// Public API
	rest.InitRestHealth(apiGroup, cfg.App.Version, serverID, healthChecks()...)
	tenantsRest.NewAuthHandler(authService).RegisterRoutes(apiGroup)

	// Tenant-scoped API; el resto de /api cae en el 404 de abajo
	protected := apiGroup.Group("", tenantsRest.NewTenantMiddleware(tenantsRest.TenantMiddlewareConfig{
		Tokens:            issuer,
		AllowTenantHeader: cfg.Auth.AllowTenantHeader,
		DefaultTenantID:   configService.DefaultTenantID(),
		Next:              tenantsRest.OnlyUnder(protectedPrefixes(cfg.App.BasePath)...),
	}))

	rest.InitRestApp(protected, cfg.App.Version)
	rest.InitRestMonitoring(protected, pool, hub)
	messagingRest.NewMessageHandler(messageService, templateService).RegisterRoutes(protected)
	contactsRest.NewContactHandler(contactService).RegisterRoutes(protected)
	campaignsRest.NewCampaignHandler(campaignService).RegisterRoutes(protected)
	tenantsRest.NewConfigHandler(configService).RegisterRoutes(protected)
	webhooksRest.NewLogHandler(logService).RegisterRoutes(protected)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(utils.ResponseData{
			Status:  fiber.StatusNotFound,
			Code:    "NOT_FOUND",
			Message: "API Endpoint not found",
			Results: fiber.Map{"path": c.Path()},
		})
	})

	return app
}

// protectedPrefixes son las rutas de /api que exigen tenant
func protectedPrefixes(basePath string) []string {
	api := strings.TrimRight(basePath, "/") + "/api"
	groups := []string{"/app", "/monitoring", "/messages", "/contacts", "/campaigns", "/tenant", "/webhooks"}
	prefixes := make([]string, 0, len(groups))
	for _, g := range groups {
		prefixes = append(prefixes, api+g)
	}
	return prefixes
}

func healthChecks() []rest.HealthCheck {
	checks := []rest.HealthCheck{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if vkClient != nil {
		checks = append(checks, rest.HealthCheck{Name: "valkey", Check: vkClient.Ping})
	}
	return checks
}
