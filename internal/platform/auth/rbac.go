package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleResponder  = "responder"
)

// ValidRole reports whether role is one the service issues.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDispatcher, RoleResponder:
		return true
	}
	return false
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether the caller holds any of roles. Admin holds them all.
func HasRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// ActingForResponder reports whether the caller may act on behalf of the
// given responder: dispatchers and admins for anyone, responders only for
// their own profile.
func ActingForResponder(ctx context.Context, responderID int64) bool {
	if HasRole(ctx, RoleDispatcher) {
		return true
	}
	own, ok := ResponderIDFromContext(ctx)
	return ok && own == responderID
}
