package http

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"leanstats/internal/auth"
	"leanstats/internal/http/middleware"
	"leanstats/internal/users"
)

type loginParams struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// SessionHandler logs operators in and out and hands out admin nonces.
type SessionHandler struct {
	db       *gorm.DB
	sessions *cartridge.SessionManager
	nonces   *auth.NonceIssuer
	logger   *slog.Logger
}

func NewSessionHandler(db *gorm.DB, sessions *cartridge.SessionManager, nonces *auth.NonceIssuer, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{db: db, sessions: sessions, nonces: nonces, logger: logger}
}

// Login accepts a JSON or form body with email and password.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var params loginParams
	if err := c.BodyParser(&params); err != nil {
		h.logger.Debug("Failed to parse login body", slog.Any("error", err))
	}

	email := strings.TrimSpace(params.Email)
	if email == "" || params.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    "invalid_request",
			"message": "Email and password are required",
		})
	}

	// Generic error message - don't reveal whether email exists
	user, ok := users.Authenticate(h.db, email, params.Password)
	if !ok {
		h.logger.Debug("Failed login attempt")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"code":    "invalid_credentials",
			"message": "Invalid email or password",
		})
	}

	if err := h.sessions.SetSession(c, user.ID); err != nil {
		h.logger.Error("Failed to set session", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    "session_failure",
			"message": "Login failed",
		})
	}

	h.logger.Debug("Login successful", slog.Int("userId", int(user.ID)))
	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"roles": user.Roles(),
		},
		"nonce": h.nonces.Create(auth.RESTAction, user.ID),
	})
}

func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	h.sessions.ClearSession(c)
	return c.SendStatus(fiber.StatusNoContent)
}

// Nonce returns a fresh admin API nonce for the current caller.
func (h *SessionHandler) Nonce(c *fiber.Ctx) error {
	caller := middleware.CallerFrom(c)
	return c.JSON(fiber.Map{
		"nonce": h.nonces.Create(auth.RESTAction, caller.UserID),
	})
}
