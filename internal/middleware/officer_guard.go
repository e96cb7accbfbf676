package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AuthGate answers whether a user may perform administrative actions.
// Implemented by the officer store.
type AuthGate interface {
	IsAuthorized(ctx context.Context, userID string) (bool, error)
}

// OfficerGuard ensures the requester is the owner or an officer. Routes
// behind it still receive "user_id" from the JWT middleware.
func OfficerGuard(gate AuthGate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get("user_id").(string)
			if !ok || userID == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}

			authorized, err := gate.IsAuthorized(c.Request().Context(), userID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
			}
			if !authorized {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "officer access only"})
			}
			return next(c)
		}
	}
}
