package utils

import "github.com/gofiber/fiber/v2"

// TenantLocalKey is where the tenant middleware stores the resolved tenant id.
const TenantLocalKey = "tenant_id"

// TenantID returns the tenant resolved for the request, or "" if none.
func TenantID(c *fiber.Ctx) string {
	id, _ := c.Locals(TenantLocalKey).(string)
	return id
}
