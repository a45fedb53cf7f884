package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SubjectContextKey holds the admin token subject on the echo context.
const SubjectContextKey = "admin_subject"

// RequireAdmin rejects requests without a valid admin bearer token.
func RequireAdmin(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			subject, err := tokenService.ValidateAdminToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(SubjectContextKey, subject)
			return next(c)
		}
	}
}
