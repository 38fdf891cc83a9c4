package api

import (
	"strings"

	"github.com/example/collab-task-board/domain/user"
	"github.com/example/collab-task-board/modules/auth"
	"github.com/gofiber/fiber/v2"
)

const (
	// SessionContextKey is the key used to store the caller's session in the Fiber context.
	SessionContextKey = "session"
)

// AuthMiddleware creates a middleware that validates access tokens.
func AuthMiddleware(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Token is required",
			})
		}

		session, err := authAdapter.ValidateToken(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(SessionContextKey, session)
		c.SetUserContext(user.WithSession(c.UserContext(), session))

		return c.Next()
	}
}

// sessionFrom returns the session stored by AuthMiddleware.
func sessionFrom(c *fiber.Ctx) (*user.Session, bool) {
	session, ok := c.Locals(SessionContextKey).(*user.Session)
	return session, ok && session != nil
}
