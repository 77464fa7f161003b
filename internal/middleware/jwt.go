package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by the authentication middleware.
const (
	ctxUserID    = "user_id"
	ctxRoleClaim = "role_claim"
	ctxRole      = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// issued by the identity provider and stores its subject in the request
// context under "user_id".  A role claim, when present, is kept under
// "role_claim" for ResolveRole.  Requests without a valid token are
// rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return jwtAuth(secret, false)
}

// OptionalJWTAuth behaves like JWTAuth but lets anonymous requests through.
// A token that is present but invalid is still rejected.
func OptionalJWTAuth(secret string) echo.MiddlewareFunc {
	return jwtAuth(secret, true)
}

func jwtAuth(secret string, optional bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" && optional {
				return next(c)
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Only HMAC tokens signed with our secret are accepted.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(ctxUserID, sub)
			if role, ok := claims["role"].(string); ok {
				c.Set(ctxRoleClaim, role)
			}
			return next(c)
		}
	}
}
