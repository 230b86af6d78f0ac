package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"leanstats/internal/pkg/numeric"
	"leanstats/internal/rawlogs"
)

const (
	defaultRawLogsLimit = 100
	maxRawLogsLimit     = 1000
)

// RawLogsHandler exports and purges the raw hit log.
type RawLogsHandler struct {
	store  *rawlogs.Store
	logger *slog.Logger
}

func NewRawLogsHandler(store *rawlogs.Store, logger *slog.Logger) *RawLogsHandler {
	return &RawLogsHandler{store: store, logger: logger}
}

func (h *RawLogsHandler) Index(c *fiber.Ctx) error {
	limit := numeric.ToInt(c.Query("limit"))
	if limit < 0 {
		limit = -limit
	}
	if limit == 0 {
		limit = defaultRawLogsLimit
	}
	if limit > maxRawLogsLimit {
		limit = maxRawLogsLimit
	}

	entries, err := h.store.Recent(c.UserContext(), limit)
	if err != nil {
		h.logger.Error("Failed to list raw logs", slog.Any("error", err))
		return storageFailure(c, "Failed to load raw logs.")
	}

	total, err := h.store.Count(c.UserContext())
	if err != nil {
		h.logger.Error("Failed to count raw logs", slog.Any("error", err))
		return storageFailure(c, "Failed to load raw logs.")
	}

	return c.JSON(fiber.Map{"items": entries, "total": total})
}

func (h *RawLogsHandler) Purge(c *fiber.Ctx) error {
	deleted, err := h.store.Purge(c.UserContext())
	if err != nil {
		h.logger.Error("Failed to purge raw logs", slog.Any("error", err))
		return storageFailure(c, "Failed to purge raw logs.")
	}

	h.logger.Info("Raw logs purged", slog.Int64("deleted", deleted))
	return c.JSON(fiber.Map{"deleted": deleted})
}
