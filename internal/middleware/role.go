package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/site-listing-marketplace/internal/auth"
)

// ResolveRole looks up the role of the authenticated caller and stores it in
// the context under "role".  When trustClaim is set an "admin" role claim in
// the token grants admin as well.  Anonymous requests pass through
// untouched, so it can follow OptionalJWTAuth.
func ResolveRole(resolver auth.RoleResolver, trustClaim bool, logger *zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := UserID(c)
			if uid == "" {
				return next(c)
			}
			role, err := resolver.ResolveRole(c.Request().Context(), uid)
			if err != nil {
				logger.Error().Err(err).Str("user_id", uid).Msg("can't resolve role")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "can't resolve role"})
			}
			if claim, _ := c.Get(ctxRoleClaim).(string); trustClaim && auth.Role(claim) == auth.RoleAdmin {
				role = auth.RoleAdmin
			}
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}

// RequireRole enforces that the caller's resolved role is one of roles.  It
// must run after ResolveRole; callers without a matching role get 403.
func RequireRole(roles ...auth.Role) echo.MiddlewareFunc {
	allowed := make(map[auth.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[CurrentRole(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
