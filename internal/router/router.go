// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/site-listing-marketplace/internal/auth"
	"github.com/iliyamo/site-listing-marketplace/internal/handler"
	"github.com/iliyamo/site-listing-marketplace/internal/middleware"
)

// Security is what the route groups need to authenticate callers.
type Security struct {
	JWTSecret      string
	Roles          auth.RoleResolver
	TrustRoleClaim bool
	Logger         *zerolog.Logger
}

func (s Security) optional() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.OptionalJWTAuth(s.JWTSecret),
		middleware.ResolveRole(s.Roles, s.TrustRoleClaim, s.Logger),
	}
}

func (s Security) required(roles ...auth.Role) []echo.MiddlewareFunc {
	m := []echo.MiddlewareFunc{
		middleware.JWTAuth(s.JWTSecret),
		middleware.ResolveRole(s.Roles, s.TrustRoleClaim, s.Logger),
	}
	if len(roles) > 0 {
		m = append(m, middleware.RequireRole(roles...))
	}
	return m
}

// PublicCache holds the middleware applied to the public browse route and
// the hook that drops cached pages after writes.  Zero values disable them.
type PublicCache struct {
	RateLimit  echo.MiddlewareFunc
	Cache      echo.MiddlewareFunc
	Invalidate echo.MiddlewareFunc
}

func (p PublicCache) browse() []echo.MiddlewareFunc {
	var m []echo.MiddlewareFunc
	if p.RateLimit != nil {
		m = append(m, p.RateLimit)
	}
	if p.Cache != nil {
		m = append(m, p.Cache)
	}
	return m
}

func (p PublicCache) writes() []echo.MiddlewareFunc {
	if p.Invalidate == nil {
		return nil
	}
	return []echo.MiddlewareFunc{p.Invalidate}
}

// RegisterRoutes registers the unauthenticated health endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterListings registers the listing routes.  Browsing is anonymous,
// reading a single listing takes an optional token, and every write needs
// an authenticated caller.  The moderation queue is admin-only.
func RegisterListings(e *echo.Echo, h *handler.ListingHandler, sec Security, pc PublicCache) {
	e.GET("/v1/listings", h.Browse, pc.browse()...)

	public := e.Group("/v1", sec.optional()...)
	public.GET("/listings/:id", h.Get)

	user := e.Group("/v1", sec.required()...)
	user.POST("/listings", h.Create, pc.writes()...)
	user.GET("/my/listings", h.Mine)
	user.PATCH("/listings/:id", h.Patch, pc.writes()...)
	user.DELETE("/listings/:id", h.Delete, pc.writes()...)

	admin := e.Group("/v1/admin", sec.required(auth.RoleAdmin)...)
	admin.GET("/listings", h.Queue)
}

// RegisterConflicts registers the admin-only price conflict routes.
func RegisterConflicts(e *echo.Echo, h *handler.ConflictHandler, sec Security, pc PublicCache) {
	g := e.Group("/v1/price-conflicts", sec.required(auth.RoleAdmin)...)
	g.GET("", h.List)
	g.POST("", h.Resolve, pc.writes()...)
}
