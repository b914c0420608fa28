package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/whatspy/whatspy/pkg/utils"
	"github.com/whatspy/whatspy/webhooks/application"
	"github.com/whatspy/whatspy/webhooks/domain"
)

// WebhookHandler recibe los callbacks de Meta. Sus rutas son públicas.
type WebhookHandler struct {
	ingestor *application.Ingestor
}

func NewWebhookHandler(ingestor *application.Ingestor) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor}
}

func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/webhook", h.Verify)
	router.Post("/webhook", h.Receive)
}

func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	challenge, err := h.ingestor.VerifyChallenge(c.UserContext(),
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if err != nil {
		return c.Status(fiber.StatusForbidden).SendString("Forbidden")
	}
	return c.Status(fiber.StatusOK).SendString(challenge)
}

// Receive responde 200 en cuanto los eventos quedan encolados
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	result, err := h.ingestor.Ingest(c.UserContext(), c.Body(), c.Get("X-Hub-Signature-256"))
	if err != nil {
		if application.IsSignatureError(err) {
			return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
				Status:  401,
				Code:    "INVALID_SIGNATURE",
				Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{
			Status:  400,
			Code:    "INVALID_PAYLOAD",
			Message: err.Error(),
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "EVENT_RECEIVED",
		Results: result,
	})
}

// LogHandler expone los webhook logs del tenant autenticado
type LogHandler struct {
	logs *application.LogService
}

func NewLogHandler(logs *application.LogService) *LogHandler {
	return &LogHandler{logs: logs}
}

func (h *LogHandler) RegisterRoutes(router fiber.Router) {
	logs := router.Group("/webhooks/logs")

	logs.Get("/", h.ListLogs)
	logs.Delete("/cleanup", h.Cleanup)
}

func (h *LogHandler) ListLogs(c *fiber.Ctx) error {
	filter := domain.LogFilter{
		LogType: domain.LogType(c.Query("log_type")),
		Phone:   c.Query("phone"),
		Skip:    c.QueryInt("skip", 0),
		Limit:   c.QueryInt("limit", domain.DefaultLogLimit),
	}

	logs, err := h.logs.List(c.UserContext(), utils.TenantID(c), filter)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Webhook logs retrieved",
		Results: fiber.Map{"logs": logs, "count": len(logs)},
	})
}

func (h *LogHandler) Cleanup(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	deleted, err := h.logs.Cleanup(c.UserContext(), utils.TenantID(c), days)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Webhook logs cleaned up",
		Results: fiber.Map{"deleted": deleted, "days": days},
	})
}
