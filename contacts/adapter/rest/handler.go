package rest

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/whatspy/whatspy/contacts/application"
	"github.com/whatspy/whatspy/contacts/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/pkg/utils"
)

// maxImportSize limita el archivo Excel aceptado por /contacts/import
const maxImportSize = 10 << 20

// ContactHandler maneja las peticiones REST para contactos
type ContactHandler struct {
	service *application.ContactService
}

func NewContactHandler(service *application.ContactService) *ContactHandler {
	return &ContactHandler{service: service}
}

// RegisterRoutes registra las rutas de contactos en el router de Fiber
func (h *ContactHandler) RegisterRoutes(router fiber.Router) {
	contacts := router.Group("/contacts")

	contacts.Get("/", h.ListContacts)
	contacts.Post("/", h.CreateContact)
	contacts.Post("/import", h.ImportContacts)
	contacts.Get("/export", h.ExportContacts)
	contacts.Get("/:phone", h.GetContact)
	contacts.Put("/:phone", h.UpdateContact)
	contacts.Delete("/:phone", h.DeleteContact)
}

func (h *ContactHandler) ListContacts(c *fiber.Ctx) error {
	filter := domain.ContactFilter{
		Search: c.Query("search"),
		Label:  c.Query("label"),
		Limit:  c.QueryInt("limit", 100),
		Offset: c.QueryInt("offset", 0),
	}

	contacts, total, err := h.service.List(c.UserContext(), utils.TenantID(c), filter)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Contacts retrieved",
		Results: fiber.Map{"contacts": contacts, "total": total},
	})
}

func (h *ContactHandler) CreateContact(c *fiber.Ctx) error {
	var req domain.CreateContactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: "Invalid request body"})
	}

	contact, err := h.service.Create(c.UserContext(), utils.TenantID(c), req)
	utils.PanicIfNeeded(toHTTPError(err))

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Contact created",
		Results: contact,
	})
}

func (h *ContactHandler) GetContact(c *fiber.Ctx) error {
	contact, err := h.service.Get(c.UserContext(), utils.TenantID(c), c.Params("phone"))
	utils.PanicIfNeeded(toHTTPError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Contact retrieved",
		Results: contact,
	})
}

func (h *ContactHandler) UpdateContact(c *fiber.Ctx) error {
	var req domain.UpdateContactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: "Invalid request body"})
	}

	contact, err := h.service.Update(c.UserContext(), utils.TenantID(c), c.Params("phone"), req)
	utils.PanicIfNeeded(toHTTPError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Contact updated",
		Results: contact,
	})
}

func (h *ContactHandler) DeleteContact(c *fiber.Ctx) error {
	err := h.service.Delete(c.UserContext(), utils.TenantID(c), c.Params("phone"))
	utils.PanicIfNeeded(toHTTPError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Contact deleted",
	})
}

// ImportContacts recibe un .xlsx en el campo multipart "file"
func (h *ContactHandler) ImportContacts(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: "file is required"})
	}
	if header.Size > maxImportSize {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "VALIDATION_ERROR", Message: "file too large"})
	}

	file, err := header.Open()
	utils.PanicIfNeeded(err)
	defer file.Close()

	result, err := h.service.ImportExcel(c.UserContext(), utils.TenantID(c), file)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Contacts imported",
		Results: result,
	})
}

func (h *ContactHandler) ExportContacts(c *fiber.Ctx) error {
	buf := &bytes.Buffer{}
	utils.PanicIfNeeded(h.service.ExportExcel(c.UserContext(), utils.TenantID(c), buf))

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="contacts.xlsx"`)
	return c.Send(buf.Bytes())
}

func toHTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrContactNotFound):
		return pkgError.NotFound(err, "")
	case errors.Is(err, domain.ErrDuplicateContact):
		return pkgError.ConflictError(err.Error())
	}
	return err
}
