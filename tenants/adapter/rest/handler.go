package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/pkg/utils"
	"github.com/whatspy/whatspy/tenants/application"
	"github.com/whatspy/whatspy/tenants/domain"
)

// AuthHandler expone el login. Va fuera del middleware de tenant.
type AuthHandler struct {
	auth *application.AuthService
}

func NewAuthHandler(auth *application.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/auth/login", h.Login)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req domain.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: "Invalid request body"})
	}

	resp, err := h.auth.Login(c.UserContext(), req)
	utils.PanicIfNeeded(toHTTPError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Login successful",
		Results: resp,
	})
}

// ConfigHandler maneja /tenant/config del tenant autenticado
type ConfigHandler struct {
	service *application.ConfigService
}

func NewConfigHandler(service *application.ConfigService) *ConfigHandler {
	return &ConfigHandler{service: service}
}

func (h *ConfigHandler) RegisterRoutes(router fiber.Router) {
	tenant := router.Group("/tenant")

	tenant.Get("/config", h.GetConfig)
	tenant.Put("/config", h.UpsertConfig)
}

func (h *ConfigHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.service.Get(c.UserContext(), utils.TenantID(c))
	utils.PanicIfNeeded(toHTTPError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tenant config retrieved",
		Results: cfg,
	})
}

func (h *ConfigHandler) UpsertConfig(c *fiber.Ctx) error {
	var req domain.UpsertConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: "Invalid request body"})
	}

	cfg, err := h.service.Upsert(c.UserContext(), utils.TenantID(c), req)
	utils.PanicIfNeeded(toHTTPError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tenant config saved",
		Results: cfg,
	})
}

func toHTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrTenantConfigNotFound):
		return pkgError.NotFound(err, "")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return pkgError.AuthError(err.Error())
	case errors.Is(err, domain.ErrDuplicatePhoneNumber), errors.Is(err, domain.ErrDuplicateAdmin):
		return pkgError.ConflictError(err.Error())
	}
	return err
}
