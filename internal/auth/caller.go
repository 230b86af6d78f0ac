// Package auth resolves who is calling and verifies anti-forgery nonces.
package auth

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"leanstats/internal/users"
)

// Caller is the identity attached to a request.
type Caller struct {
	UserID        uint
	Roles         []string
	Authenticated bool
}

// Anonymous is the caller of a request without a session.
var Anonymous = Caller{}

// HasAnyRole reports whether the caller holds one of the given roles.
func (c Caller) HasAnyRole(roles []string) bool {
	for _, held := range c.Roles {
		for _, r := range roles {
			if held == r {
				return true
			}
		}
	}
	return false
}

// CanManageAnalytics reports whether the caller may read reports and change settings.
func (c Caller) CanManageAnalytics() bool {
	return c.Authenticated && users.CanManageAnalytics(c.Roles)
}

// Resolver extracts the caller from a request.
type Resolver interface {
	Resolve(c *fiber.Ctx) Caller
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(c *fiber.Ctx) Caller

func (f ResolverFunc) Resolve(c *fiber.Ctx) Caller {
	return f(c)
}

// SessionResolver resolves callers from the cartridge login session.
type SessionResolver struct {
	sessions *cartridge.SessionManager
	db       *gorm.DB
	logger   *slog.Logger
}

func NewSessionResolver(sessions *cartridge.SessionManager, db *gorm.DB, logger *slog.Logger) *SessionResolver {
	return &SessionResolver{sessions: sessions, db: db, logger: logger}
}

// Resolve returns Anonymous when there is no session or the user no longer exists.
func (r *SessionResolver) Resolve(c *fiber.Ctx) Caller {
	if r.sessions == nil {
		return Anonymous
	}

	userID, ok := r.sessions.GetUserID(c)
	if !ok {
		return Anonymous
	}

	user, err := users.FindByID(r.db, uint(userID))
	if err != nil {
		if !errors.Is(err, users.ErrUserNotFound) {
			r.logger.Error("Failed to load session user", slog.Any("error", err))
		}
		return Anonymous
	}

	return Caller{
		UserID:        user.ID,
		Roles:         user.Roles(),
		Authenticated: true,
	}
}
