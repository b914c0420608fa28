package rest

import (
	"runtime"

	"github.com/gofiber/fiber/v2"
	"github.com/whatspy/whatspy/core/config"
	"github.com/whatspy/whatspy/pkg/utils"
)

type App struct {
	version string
}

func InitRestApp(app fiber.Router, version string) App {
	rest := App{version: version}
	app.Get("/app/version", rest.GetVersion)
	app.Get("/app/settings", rest.GetSettings)

	return rest
}

func (handler *App) GetVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": handler.version,
		"os":      runtime.GOOS,
	})
}

// GetSettings devuelve la configuración no sensible cargada en memoria
func (handler *App) GetSettings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings retrieved",
		Results: config.GetAllSettings(),
	})
}
