// Package privacy decides whether a hit may be processed at all.
package privacy

import (
	"github.com/gofiber/fiber/v2"

	"leanstats/internal/auth"
	"leanstats/internal/settings"
)

// Request is the part of an inbound hit request the gate looks at.
type Request struct {
	DNT    string
	SecGPC string
	Caller auth.Caller
}

// RequestFromFiber extracts the privacy headers from c.
func RequestFromFiber(c *fiber.Ctx, caller auth.Caller) Request {
	return Request{
		DNT:    c.Get("DNT"),
		SecGPC: c.Get("Sec-GPC"),
		Caller: caller,
	}
}

// ShouldSkip reports whether the hit must be dropped before any processing.
func ShouldSkip(req Request, s settings.Settings) bool {
	if s.StrictMode && req.Caller.Authenticated {
		return true
	}

	if len(s.ExcludedRoles) > 0 && req.Caller.Authenticated && req.Caller.HasAnyRole(s.ExcludedRoles) {
		return true
	}

	if s.RespectDNTGPC && (req.DNT == "1" || req.SecGPC == "1") {
		return true
	}

	return false
}
