package websocket

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"github.com/whatspy/whatspy/pkg/utils"
)

// TokenValidator resolves the tenant a bearer token belongs to.
type TokenValidator interface {
	TenantFromToken(token string) (string, error)
}

type HandlerConfig struct {
	WriteTimeout time.Duration
	Validator    TokenValidator
	RequireToken bool
}

// RegisterRoutes monta GET /ws/:tenant_id
func RegisterRoutes(app fiber.Router, hub *Hub, cfg HandlerConfig) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.SendStatus(fiber.StatusUpgradeRequired)
		}
		return c.Next()
	})

	app.Get("/ws/:tenant_id", authorize(cfg), websocket.New(func(ws *websocket.Conn) {
		tenantID := ws.Params("tenant_id")
		socket := newConn(ws, cfg.WriteTimeout)
		fields := logrus.Fields{"tenant_id": tenantID}

		if err := hub.Connect(tenantID, socket); err != nil {
			logrus.WithFields(fields).WithError(err).Warn("[WS] Rejecting connection")
			_ = ws.Close()
			return
		}
		logrus.WithFields(fields).Info("[WS] Client connected")

		defer func() {
			hub.Disconnect(tenantID, socket)
			_ = ws.Close()
			logrus.WithFields(fields).Info("[WS] Client disconnected")
		}()

		for {
			messageType, message, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logrus.WithFields(fields).Debugf("[WS] Read error: %v", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				continue
			}
			if strings.TrimSpace(string(message)) == "ping" {
				if err := socket.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
					return
				}
			}
		}
	}))
}

// authorize checks ?token= before the upgrade. Without a validator every
// connection is accepted.
func authorize(cfg HandlerConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			if cfg.RequireToken {
				return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{Status: 401, Code: "AUTHENTICATION_ERROR", Message: "missing token"})
			}
			return c.Next()
		}
		if cfg.Validator == nil {
			return c.Next()
		}

		tenantID, err := cfg.Validator.TenantFromToken(token)
		if err != nil || tenantID != c.Params("tenant_id") {
			return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{Status: 401, Code: "AUTHENTICATION_ERROR", Message: "invalid token for tenant"})
		}
		return c.Next()
	}
}
