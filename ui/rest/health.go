package rest

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/whatspy/whatspy/pkg/utils"
)

// HealthCheck is one named dependency probe (database, valkey).
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Health struct {
	checks    []HealthCheck
	version   string
	serverID  string
	startedAt time.Time
}

func InitRestHealth(app fiber.Router, version, serverID string, checks ...HealthCheck) Health {
	handler := Health{checks: checks, version: version, serverID: serverID, startedAt: time.Now()}

	app.Get("/health", handler.GetStatus)

	return handler
}

// GetStatus responde 503 si alguna dependencia falla
func (h *Health) GetStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	components := make(map[string]string, len(h.checks))
	healthy := true
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			components[check.Name] = "error: " + err.Error()
			healthy = false
			continue
		}
		components[check.Name] = "ok"
	}

	results := map[string]any{
		"status":     "healthy",
		"version":    h.version,
		"server_id":  h.serverID,
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"components": components,
	}

	if !healthy {
		results["status"] = "unhealthy"
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  503,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "One or more components are unhealthy",
			Results: results,
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: results,
	})
}
