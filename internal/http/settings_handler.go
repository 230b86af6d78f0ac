package http

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"leanstats/internal/settings"
	"leanstats/internal/users"
)

// SettingsHandler reads and updates the tracking settings document.
type SettingsHandler struct {
	store  *settings.Store
	logger *slog.Logger
}

func NewSettingsHandler(store *settings.Store, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: logger}
}

func (h *SettingsHandler) Show(c *fiber.Ctx) error {
	current, err := h.store.Load()
	if err != nil {
		h.logger.Error("Failed to load settings", slog.Any("error", err))
		return storageFailure(c, "Failed to load settings.")
	}
	return c.JSON(current)
}

// Update merges the posted fields over the stored settings. It accepts a JSON
// object or a urlencoded form. Unknown keys are ignored and invalid values
// fall back to their defaults.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	update := map[string]any{}
	switch {
	case strings.HasPrefix(strings.ToLower(string(c.Request().Header.ContentType())), fiber.MIMEApplicationForm):
		update = settingsFromForm(c)
	case len(c.Body()) > 0:
		if err := c.BodyParser(&update); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":    "invalid_request",
				"message": "Settings must be a JSON object or a form.",
			})
		}
	}

	next, err := h.store.Update(update)
	if err != nil {
		h.logger.Error("Failed to save settings", slog.Any("error", err))
		return storageFailure(c, "Failed to save settings.")
	}
	return c.JSON(next)
}

// settingsFromForm keeps the posted setting keys as strings. A key sent more
// than once becomes a list.
func settingsFromForm(c *fiber.Ctx) map[string]any {
	args := c.Request().PostArgs()
	update := map[string]any{}
	for _, key := range settings.Keys() {
		if !args.Has(key) {
			continue
		}
		values := args.PeekMulti(key)
		if len(values) == 1 {
			update[key] = string(values[0])
			continue
		}
		list := make([]string, 0, len(values))
		for _, v := range values {
			list = append(list, string(v))
		}
		update[key] = list
	}
	return update
}

// Roles lists the role identifiers the settings screen can exclude.
func (h *SettingsHandler) Roles(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"roles": users.KnownRoles()})
}

func storageFailure(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"code":    "storage_failure",
		"message": message,
	})
}
