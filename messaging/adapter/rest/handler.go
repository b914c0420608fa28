package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/whatspy/whatspy/messaging/application"
	"github.com/whatspy/whatspy/messaging/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/pkg/utils"
)

// MessageHandler maneja las peticiones REST de mensajes y plantillas
type MessageHandler struct {
	messages  *application.MessageService
	templates *application.TemplateService
}

func NewMessageHandler(messages *application.MessageService, templates *application.TemplateService) *MessageHandler {
	return &MessageHandler{messages: messages, templates: templates}
}

// RegisterRoutes registra las rutas bajo /messages
func (h *MessageHandler) RegisterRoutes(router fiber.Router) {
	messages := router.Group("/messages")

	// Envío
	messages.Post("/send", h.SendText)
	messages.Post("/send/text", h.SendText)
	messages.Post("/send/media", h.SendMedia)
	messages.Post("/send/location", h.SendLocation)

	// Consultas
	messages.Get("/", h.ListMessages)
	messages.Get("/conversations", h.ListConversations)
	messages.Get("/conversations/:phone", h.GetConversation)
	messages.Delete("/conversations/:phone", h.DeleteConversation)
	messages.Get("/stats", h.GetStats)

	// Plantillas
	messages.Get("/templates", h.ListTemplates)
	messages.Post("/templates", h.CreateTemplate)
	messages.Post("/templates/send", h.SendTemplate)
	messages.Post("/templates/approved/send", h.SendApprovedTemplate)
	messages.Delete("/templates/:id", h.DeleteTemplate)

	messages.Put("/:message_id/status", h.UpdateStatus)
	messages.Post("/:message_id/read", h.MarkAsRead)
}

func (h *MessageHandler) SendText(c *fiber.Ctx) error {
	var request domain.SendTextRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: err.Error()})
	}

	result, err := h.messages.SendText(c.UserContext(), utils.TenantID(c), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: sendMessage(result),
		Results: result,
	})
}

func (h *MessageHandler) SendMedia(c *fiber.Ctx) error {
	var request domain.SendMediaRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: err.Error()})
	}

	result, err := h.messages.SendMedia(c.UserContext(), utils.TenantID(c), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: sendMessage(result),
		Results: result,
	})
}

func (h *MessageHandler) SendLocation(c *fiber.Ctx) error {
	var request domain.SendLocationRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: err.Error()})
	}

	result, err := h.messages.SendLocation(c.UserContext(), utils.TenantID(c), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: sendMessage(result),
		Results: result,
	})
}

func (h *MessageHandler) ListMessages(c *fiber.Ctx) error {
	filter := domain.MessageFilter{
		Phone:     c.Query("phone"),
		Direction: domain.Direction(c.Query("direction")),
		Skip:      c.QueryInt("skip", 0),
		Limit:     c.QueryInt("limit", domain.DefaultListLimit),
	}

	list, total, err := h.messages.ListMessages(c.UserContext(), utils.TenantID(c), filter)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Messages retrieved",
		Results: fiber.Map{"messages": list, "total": total, "skip": filter.Skip, "limit": len(list)},
	})
}

func (h *MessageHandler) ListConversations(c *fiber.Ctx) error {
	conversations, err := h.messages.ListConversations(c.UserContext(), utils.TenantID(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Conversations retrieved",
		Results: fiber.Map{"conversations": conversations, "count": len(conversations)},
	})
}

func (h *MessageHandler) GetConversation(c *fiber.Ctx) error {
	phone := c.Params("phone")
	msgs, err := h.messages.GetConversation(c.UserContext(), utils.TenantID(c), phone, c.QueryInt("limit", 100))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Conversation retrieved",
		Results: fiber.Map{"phone": utils.NormalizePhone(phone), "messages": msgs, "count": len(msgs)},
	})
}

func (h *MessageHandler) DeleteConversation(c *fiber.Ctx) error {
	deleted, err := h.messages.DeleteConversation(c.UserContext(), utils.TenantID(c), c.Params("phone"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Conversation deleted",
		Results: fiber.Map{"deleted_count": deleted},
	})
}

func (h *MessageHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.messages.GetStats(c.UserContext(), utils.TenantID(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Stats retrieved",
		Results: stats,
	})
}

func (h *MessageHandler) UpdateStatus(c *fiber.Ctx) error {
	var request domain.UpdateStatusRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: err.Error()})
	}

	messageID := c.Params("message_id")
	msg, found, err := h.messages.UpdateStatus(c.UserContext(), utils.TenantID(c), messageID, request.Status)
	utils.PanicIfNeeded(err)
	if !found {
		utils.PanicIfNeeded(pkgError.NotFound(domain.ErrMessageNotFound, messageID))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Status updated",
		Results: msg,
	})
}

func (h *MessageHandler) MarkAsRead(c *fiber.Ctx) error {
	err := h.messages.MarkAsRead(c.UserContext(), utils.TenantID(c), c.Params("message_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Message marked as read",
	})
}

func (h *MessageHandler) ListTemplates(c *fiber.Ctx) error {
	templates, err := h.templates.List(c.UserContext(), utils.TenantID(c), c.Query("category"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Templates retrieved",
		Results: fiber.Map{"templates": templates, "count": len(templates)},
	})
}

func (h *MessageHandler) CreateTemplate(c *fiber.Ctx) error {
	var request domain.CreateTemplateRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: err.Error()})
	}

	tpl, err := h.templates.Create(c.UserContext(), utils.TenantID(c), request)
	utils.PanicIfNeeded(toHTTPError(err))

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Template created",
		Results: tpl,
	})
}

func (h *MessageHandler) SendTemplate(c *fiber.Ctx) error {
	var request domain.SendTemplateRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: err.Error()})
	}

	result, err := h.templates.Send(c.UserContext(), utils.TenantID(c), request)
	utils.PanicIfNeeded(toHTTPError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: sendMessage(result),
		Results: result,
	})
}

// SendApprovedTemplate envía una plantilla aprobada por Meta (fuera de la ventana de 24h)
func (h *MessageHandler) SendApprovedTemplate(c *fiber.Ctx) error {
	var request domain.SendApprovedTemplateRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: err.Error()})
	}

	result, err := h.templates.SendApproved(c.UserContext(), utils.TenantID(c), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: sendMessage(result),
		Results: result,
	})
}

func (h *MessageHandler) DeleteTemplate(c *fiber.Ctx) error {
	err := h.templates.Delete(c.UserContext(), utils.TenantID(c), c.Params("id"))
	utils.PanicIfNeeded(toHTTPError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Template deleted",
	})
}

func sendMessage(result *domain.SendResult) string {
	if result.Sent {
		return "Message sent"
	}
	return "Message stored (WhatsApp API not configured)"
}

// toHTTPError traduce los errores de dominio a pkgError
func toHTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrTemplateNotFound), errors.Is(err, domain.ErrMessageNotFound):
		return pkgError.NotFound(err, "")
	case errors.Is(err, domain.ErrDuplicateTemplate):
		return pkgError.ConflictError(err.Error())
	}
	return err
}
