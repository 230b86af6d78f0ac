package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"leanstats/internal/analytics"
	"leanstats/internal/pkg/numeric"
	"leanstats/internal/timeframe"
)

// ReportsHandler serves the read-only report endpoints.
type ReportsHandler struct {
	service *analytics.Service
	ranges  *timeframe.Resolver
	logger  *slog.Logger
}

func NewReportsHandler(service *analytics.Service, ranges *timeframe.Resolver, logger *slog.Logger) *ReportsHandler {
	return &ReportsHandler{service: service, ranges: ranges, logger: logger}
}

func (h *ReportsHandler) KPIs(c *fiber.Ctx) error {
	rng := h.dayRange(c)
	kpis, err := h.service.KPIs(c.UserContext(), rng)
	if err != nil {
		return h.queryFailed(c, err)
	}
	return c.JSON(fiber.Map{"range": rng, "kpis": kpis})
}

func (h *ReportsHandler) TopPages(c *fiber.Ctx) error {
	rng := h.dayRange(c)
	items, err := h.service.TopPages(c.UserContext(), rng, limitParam(c))
	if err != nil {
		return h.queryFailed(c, err)
	}
	return c.JSON(fiber.Map{"range": rng, "items": items})
}

func (h *ReportsHandler) Referrers(c *fiber.Ctx) error {
	rng := h.dayRange(c)
	items, err := h.service.TopReferrers(c.UserContext(), rng, limitParam(c))
	if err != nil {
		return h.queryFailed(c, err)
	}
	return c.JSON(fiber.Map{"range": rng, "items": items})
}

func (h *ReportsHandler) TimeseriesDay(c *fiber.Ctx) error {
	rng := h.dayRange(c)
	items, err := h.service.TimeseriesDay(c.UserContext(), rng)
	if err != nil {
		return h.queryFailed(c, err)
	}
	return c.JSON(fiber.Map{"range": rng, "items": items})
}

func (h *ReportsHandler) TimeseriesHour(c *fiber.Ctx) error {
	rng := h.ranges.ResolveHourRange(c.Query("start"), c.Query("end"))
	items, err := h.service.TimeseriesHour(c.UserContext(), rng)
	if err != nil {
		return h.queryFailed(c, err)
	}
	return c.JSON(fiber.Map{"range": rng, "items": items})
}

func (h *ReportsHandler) DeviceSplit(c *fiber.Ctx) error {
	rng := h.dayRange(c)
	items, err := h.service.DeviceSplit(c.UserContext(), rng)
	if err != nil {
		return h.queryFailed(c, err)
	}
	return c.JSON(fiber.Map{"range": rng, "items": items})
}

func (h *ReportsHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.service.Overview(c.UserContext(), h.dayRange(c), limitParam(c))
	if err != nil {
		return h.queryFailed(c, err)
	}
	return c.JSON(overview)
}

func (h *ReportsHandler) dayRange(c *fiber.Ctx) timeframe.Range {
	return h.ranges.ResolveDayRange(c.Query("start"), c.Query("end"))
}

func (h *ReportsHandler) queryFailed(c *fiber.Ctx, err error) error {
	h.logger.Error("Report query failed", slog.String("path", c.Path()), slog.Any("error", err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"code":    "query_failed",
		"message": "Failed to load report",
	})
}

// limitParam reads ?limit=, treating anything non-numeric as unset.
func limitParam(c *fiber.Ctx) int {
	return timeframe.NormalizeLimit(numeric.ToInt(c.Query("limit")))
}
