package rest

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/whatspy/whatspy/pkg/utils"
)

const TenantHeader = "X-Tenant-Id"

// TokenParser extracts the tenant from a bearer token.
type TokenParser interface {
	TenantFromToken(token string) (string, error)
}

type TenantMiddlewareConfig struct {
	// Next omite el middleware cuando retorna true
	Next func(c *fiber.Ctx) bool

	Tokens            TokenParser
	AllowTenantHeader bool
	DefaultTenantID   string
}

// OnlyUnder returns a Next func that skips every path outside the given
// prefixes, plus CORS preflight requests.
func OnlyUnder(prefixes ...string) func(c *fiber.Ctx) bool {
	return func(c *fiber.Ctx) bool {
		if c.Method() == fiber.MethodOptions {
			return true
		}
		path := c.Path()
		for _, p := range prefixes {
			if path == p || strings.HasPrefix(path, p+"/") {
				return false
			}
		}
		return true
	}
}

// NewTenantMiddleware resuelve el tenant de la petición y lo deja en c.Locals.
// Orden: Bearer JWT, luego X-Tenant-Id o el tenant por defecto si está permitido.
func NewTenantMiddleware(cfg TenantMiddlewareConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return unauthorized(c, "invalid authorization format")
			}

			tenantID, err := cfg.Tokens.TenantFromToken(strings.TrimSpace(parts[1]))
			if err != nil {
				logrus.WithError(err).WithField("path", c.Path()).Debug("[AUTH] Rejected token")
				return unauthorized(c, "invalid or expired token")
			}
			c.Locals(utils.TenantLocalKey, tenantID)
			return c.Next()
		}

		if !cfg.AllowTenantHeader {
			return unauthorized(c, "missing authorization header")
		}

		tenantID := strings.TrimSpace(c.Get(TenantHeader))
		if tenantID == "" {
			tenantID = cfg.DefaultTenantID
		}
		if tenantID == "" {
			return unauthorized(c, "tenant could not be resolved")
		}
		c.Locals(utils.TenantLocalKey, tenantID)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
		Status:  fiber.StatusUnauthorized,
		Code:    "AUTHENTICATION_ERROR",
		Message: message,
	})
}
