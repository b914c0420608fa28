package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/whatspy/whatspy/pkg/utils"
)

// GetWorkerPoolStats returns real-time webhook worker pool statistics
func (h *MonitoringHandler) GetWorkerPoolStats(c *fiber.Ctx) error {
	if h.pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  503,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "Webhook worker pool not initialized",
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Worker pool stats retrieved",
		Results: h.pool.GetStats(),
	})
}
