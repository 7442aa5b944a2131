package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bookhive/bookhive/src/internal/database/models"
)

// Context keys set by RequireAuth.
const (
	contextUserKey   = "user"
	contextClaimsKey = "claims"
)

// Middleware guards routes with token and role checks.
type Middleware struct {
	auth *AuthService
}

// NewMiddleware creates authentication middleware backed by the service.
func NewMiddleware(auth *AuthService) *Middleware {
	return &Middleware{auth: auth}
}

// RequireAuth validates the bearer token, rejects revoked tokens and loads
// the account it names into the request context.
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
			}

			parts := strings.Split(header, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authentication format")
			}

			ctx := c.Request().Context()
			claims, err := m.auth.ValidateAccessToken(ctx, parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			user, err := m.auth.UserByID(ctx, claims.UserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
			}
			if !user.IsActive {
				return echo.NewHTTPError(http.StatusForbidden, "inactive user")
			}

			c.Set(contextUserKey, user)
			c.Set(contextClaimsKey, claims)
			return next(c)
		}
	}
}

// RequireRoles allows only the named roles through. Must run after
// RequireAuth.
func (m *Middleware) RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
			}
			if !user.HasRole(roles...) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("Access denied. Required roles: %s", strings.Join(roles, ", ")))
			}
			return next(c)
		}
	}
}

// RequireStaff is shorthand for the two staff roles.
func (m *Middleware) RequireStaff() echo.MiddlewareFunc {
	return m.RequireRoles(models.RoleAdmin, models.RoleLibrarian)
}

// CurrentUser returns the authenticated user, or nil outside RequireAuth.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(contextUserKey).(*models.User)
	return user
}

// CurrentClaims returns the validated token claims, or nil outside RequireAuth.
func CurrentClaims(c echo.Context) *Claims {
	claims, _ := c.Get(contextClaimsKey).(*Claims)
	return claims
}
