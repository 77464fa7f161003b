package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/site-listing-marketplace/internal/service"
)

// ConflictHandler serves the admin price-conflict routes.
type ConflictHandler struct {
	Conflicts *service.ConflictService
	Logger    *zerolog.Logger
}

// NewConflictHandler constructs a ConflictHandler and panics if a
// dependency is missing.
func NewConflictHandler(conflicts *service.ConflictService, logger *zerolog.Logger) *ConflictHandler {
	if conflicts == nil || logger == nil {
		panic("nil dependency passed to NewConflictHandler")
	}
	return &ConflictHandler{Conflicts: conflicts, Logger: logger}
}

// List handles GET /v1/price-conflicts.
func (h *ConflictHandler) List(c echo.Context) error {
	groups, err := h.Conflicts.Groups(c.Request().Context())
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, groups)
}

type resolveConflictRequest struct {
	ConflictGroup     string `json:"conflictGroup"`
	SelectedWebsiteID string `json:"selectedWebsiteId"`
	Reason            string `json:"reason"`
}

// Resolve handles POST /v1/price-conflicts.
func (h *ConflictHandler) Resolve(c echo.Context) error {
	var body resolveConflictRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Conflicts.Resolve(c.Request().Context(), body.ConflictGroup, body.SelectedWebsiteID, body.Reason)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Price conflict resolved",
		"approved": res.Approved,
		"rejected": res.Rejected,
	})
}
