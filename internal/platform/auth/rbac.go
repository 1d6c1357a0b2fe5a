package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the actor has one of the
// specified roles. Admins pass every role check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := ActorFromContext(c.Request().Context())
			if actor.ID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if actor.Role == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if actor.Role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// Owns reports whether the actor may act on a record owned by ownerID.
// Caregivers and admins have full access; patients only their own records.
func (a Actor) Owns(ownerID string) bool {
	switch a.Role {
	case RoleAdmin, RoleCaregiver:
		return true
	default:
		return a.ID == ownerID
	}
}

// IsSelf reports whether the actor is the given user, regardless of role.
func (a Actor) IsSelf(userID string) bool {
	return a.ID == userID
}
