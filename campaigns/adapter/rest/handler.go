package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/whatspy/whatspy/campaigns/application"
	"github.com/whatspy/whatspy/campaigns/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/pkg/utils"
)

type CampaignHandler struct {
	service *application.CampaignService
}

func NewCampaignHandler(service *application.CampaignService) *CampaignHandler {
	return &CampaignHandler{service: service}
}

func (h *CampaignHandler) RegisterRoutes(router fiber.Router) {
	campaigns := router.Group("/campaigns")

	campaigns.Post("/broadcast", h.Broadcast)
	campaigns.Get("/", h.ListCampaigns)
	campaigns.Get("/:id", h.GetCampaign)
}

// Broadcast responde 202: los envíos siguen en el worker pool
func (h *CampaignHandler) Broadcast(c *fiber.Ctx) error {
	var req domain.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: "Invalid request body"})
	}

	campaign, err := h.service.Broadcast(c.UserContext(), utils.TenantID(c), req)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusAccepted).JSON(utils.ResponseData{
		Status:  202,
		Code:    "SUCCESS",
		Message: "Campaign queued",
		Results: campaign,
	})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	filter := domain.CampaignFilter{
		Skip:  c.QueryInt("skip", 0),
		Limit: c.QueryInt("limit", domain.DefaultListLimit),
	}

	campaigns, total, err := h.service.List(c.UserContext(), utils.TenantID(c), filter)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Campaigns retrieved",
		Results: fiber.Map{"campaigns": campaigns, "total": total},
	})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	campaign, err := h.service.Get(c.UserContext(), utils.TenantID(c), c.Params("id"))
	if errors.Is(err, domain.ErrCampaignNotFound) {
		err = pkgError.NotFound(err, c.Params("id"))
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Campaign retrieved",
		Results: campaign,
	})
}
