package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/whatspy/whatspy/pkg/msgworker"
	"github.com/whatspy/whatspy/pkg/utils"
)

// PoolStatsProvider is satisfied by *msgworker.Pool.
type PoolStatsProvider interface {
	GetStats() msgworker.PoolStats
}

// ConnectionCounter is satisfied by *websocket.Hub.
type ConnectionCounter interface {
	Counts(tenantID string) map[string]int
}

type MonitoringHandler struct {
	pool PoolStatsProvider
	hub  ConnectionCounter
}

// InitRestMonitoring registra los endpoints de monitoreo del nodo
func InitRestMonitoring(app fiber.Router, pool PoolStatsProvider, hub ConnectionCounter) *MonitoringHandler {
	h := &MonitoringHandler{pool: pool, hub: hub}

	g := app.Group("/monitoring")
	g.Get("/workers", h.GetWorkerPoolStats)
	g.Get("/ws", h.GetConnections)

	return h
}

// GetConnections lista los sockets abiertos. ?tenant_id= filtra; "me" usa el tenant del request.
func (h *MonitoringHandler) GetConnections(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "me" {
		tenantID = utils.TenantID(c)
	}

	counts := h.hub.Counts(tenantID)
	total := 0
	for _, n := range counts {
		total += n
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "WebSocket connections retrieved",
		Results: fiber.Map{"tenants": counts, "total": total},
	})
}
