package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/site-listing-marketplace/internal/auth"
)

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(c echo.Context) string {
	s, _ := c.Get(ctxUserID).(string)
	return s
}

// CurrentRole returns the role stored by ResolveRole, or "" when none was
// resolved.
func CurrentRole(c echo.Context) auth.Role {
	r, _ := c.Get(ctxRole).(auth.Role)
	return r
}

// IsAdmin reports whether the caller resolved to the admin role.
func IsAdmin(c echo.Context) bool {
	return CurrentRole(c) == auth.RoleAdmin
}

func rateIdentity(c echo.Context) string {
	if uid := UserID(c); uid != "" {
		return uid
	}
	return "anon"
}
