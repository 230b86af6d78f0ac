package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"leanstats/internal/auth"
)

const callerKey = "leanstats_caller"

// NonceHeader carries the anti-forgery nonce on admin requests.
const NonceHeader = "X-WP-Nonce"

// NonceParam is the query parameter alternative to NonceHeader.
const NonceParam = "_wpnonce"

// Administrator rejects callers without the administrator role with
// 403 {code:"forbidden"} and stores the caller for the handler.
func Administrator(callers auth.Resolver, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := authorize(c, callers, logger); !ok {
			return forbidden(c)
		}
		return c.Next()
	}
}

// AdminAPI is Administrator plus a nonce check. A missing or stale nonce
// gets 403 {code:"invalid_nonce"}.
func AdminAPI(callers auth.Resolver, nonces *auth.NonceIssuer, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := authorize(c, callers, logger)
		if !ok {
			return forbidden(c)
		}

		nonce := c.Get(NonceHeader)
		if nonce == "" {
			nonce = c.Query(NonceParam)
		}

		if err := nonces.Verify(nonce, auth.RESTAction, caller.UserID); err != nil {
			logger.Debug("Admin request with invalid nonce", slog.String("path", c.Path()))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"code":    "invalid_nonce",
				"message": "Cookie check failed",
			})
		}

		return c.Next()
	}
}

// CallerFrom returns the caller stored by the admin middleware, or Anonymous.
func CallerFrom(c *fiber.Ctx) auth.Caller {
	if caller, ok := c.Locals(callerKey).(auth.Caller); ok {
		return caller
	}
	return auth.Anonymous
}

func authorize(c *fiber.Ctx, callers auth.Resolver, logger *slog.Logger) (auth.Caller, bool) {
	caller := callers.Resolve(c)
	if !caller.CanManageAnalytics() {
		logger.Debug("Admin request rejected",
			slog.String("path", c.Path()),
			slog.Bool("authenticated", caller.Authenticated))
		return caller, false
	}

	c.Locals(callerKey, caller)
	return caller, true
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"code":    "forbidden",
		"message": "Sorry, you are not allowed to do that.",
	})
}
