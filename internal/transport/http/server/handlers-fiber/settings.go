package handlers_fiber

import (
	"net/http"

	"facility-maintenance/internal/mapper"
	api "facility-maintenance/internal/oapi"

	"github.com/gofiber/fiber/v2"
)

// GetSettings returns the active notification settings.
func (h *Handler) GetSettings(c *fiber.Ctx) error {
	s, err := h.uc.Settings(c.Context())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(api.SettingsResponse{Settings: mapper.ToOAPISettings(*s)})
}

// PutSettings validates and activates a new settings version.
func (h *Handler) PutSettings(c *fiber.Ctx) error {
	var body api.PutSettingsJSONRequestBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody(c)
	}
	s, err := h.uc.SaveSettings(c.Context(), mapper.FromOAPISettings(body))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(api.SettingsResponse{Settings: mapper.ToOAPISettings(*s)})
}

// PostSettingsReload re-reads stored settings.
func (h *Handler) PostSettingsReload(c *fiber.Ctx) error {
	s, err := h.uc.ReloadSettings(c.Context())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(api.SettingsResponse{Settings: mapper.ToOAPISettings(*s)})
}
