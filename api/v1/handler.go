package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"leanstats/internal/auth"
	"leanstats/internal/hits"
	"leanstats/internal/privacy"
)

var payloadFields = []string{"page_path", "post_id", "referrer_domain", "device_class", "timestamp_bucket"}

// HitsHandler accepts hits from the tracker.
type HitsHandler struct {
	collector *hits.Collector
	callers   auth.Resolver
	logger    *slog.Logger
}

func NewHitsHandler(collector *hits.Collector, callers auth.Resolver, logger *slog.Logger) *HitsHandler {
	return &HitsHandler{collector: collector, callers: callers, logger: logger}
}

// Create answers 201 when the hit was counted, 204 when it was dropped for
// any policy or storage reason and 400 when the payload is invalid.
func (h *HitsHandler) Create(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		h.logger.Debug("Failed to parse hit payload", slog.Any("error", err))
		return validationResponse(c, hits.ErrInvalidRequest)
	}

	caller := auth.Anonymous
	if h.callers != nil {
		caller = h.callers.Resolve(c)
	}

	outcome, err := h.collector.Collect(c.UserContext(), hits.Submission{
		Payload:   payload,
		Privacy:   privacy.RequestFromFiber(c, caller),
		ClientIP:  clientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		if verr, ok := hits.AsValidationError(err); ok {
			return validationResponse(c, verr)
		}
		h.logger.Error("Unexpected collector error", slog.Any("error", err))
		return c.Status(http.StatusNoContent).JSON(fiber.Map{"tracked": false})
	}

	if outcome.Tracked() {
		return c.Status(http.StatusCreated).JSON(fiber.Map{"tracked": true})
	}
	return c.Status(http.StatusNoContent).JSON(fiber.Map{"tracked": false})
}

func validationResponse(c *fiber.Ctx, verr *hits.ValidationError) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{
		"code":    verr.Code,
		"message": verr.Message,
	})
}

// parsePayload reads a form body field by field and anything else as JSON.
// sendBeacon posts JSON as text/plain, so the content type is not trusted.
func parsePayload(c *fiber.Ctx) (hits.Payload, error) {
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))
	if strings.HasPrefix(contentType, fiber.MIMEApplicationForm) || strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		values := make(map[string]any, len(payloadFields))
		for _, field := range payloadFields {
			if v := c.FormValue(field); v != "" {
				values[field] = v
			}
		}
		return hits.Payload{
			PagePath:        values["page_path"],
			PostID:          values["post_id"],
			ReferrerDomain:  values["referrer_domain"],
			DeviceClass:     values["device_class"],
			TimestampBucket: values["timestamp_bucket"],
		}, nil
	}

	body := c.Body()
	if len(body) == 0 {
		return hits.Payload{}, errors.New("empty body")
	}

	var payload hits.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return hits.Payload{}, err
	}
	return payload, nil
}
