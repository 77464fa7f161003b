package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/site-listing-marketplace/internal/middleware"
	"github.com/iliyamo/site-listing-marketplace/internal/model"
	"github.com/iliyamo/site-listing-marketplace/internal/service"
)

// ListingHandler serves the publisher, buyer and moderator listing routes.
type ListingHandler struct {
	Listings   *service.ListingService
	Moderation *service.ModerationService
	Logger     *zerolog.Logger
}

// NewListingHandler constructs a ListingHandler and panics if a dependency
// is missing.
func NewListingHandler(listings *service.ListingService, moderation *service.ModerationService, logger *zerolog.Logger) *ListingHandler {
	if listings == nil || moderation == nil || logger == nil {
		panic("nil dependency passed to NewListingHandler")
	}
	return &ListingHandler{Listings: listings, Moderation: moderation, Logger: logger}
}

// createListingRequest is the POST /v1/listings body.  A single category
// may be sent as "category"; it is merged into "categories".
type createListingRequest struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Price       *int64   `json:"priceMinorUnits"`
	Category    string   `json:"category"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	Countries   []string `json:"countries"`
	model.Metrics
}

func (r createListingRequest) input() service.SubmitInput {
	categories := r.Categories
	if r.Category != "" {
		categories = append([]string{r.Category}, categories...)
	}
	return service.SubmitInput{
		Title:       r.Title,
		URL:         r.URL,
		Description: r.Description,
		Price:       r.Price,
		Categories:  categories,
		Tags:        r.Tags,
		Countries:   r.Countries,
		Metrics:     r.Metrics,
	}
}

// Create handles POST /v1/listings.  When the URL is already listed by
// another publisher the new listing joins a price conflict and the response
// says so.
func (h *ListingHandler) Create(c echo.Context) error {
	var body createListingRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Listings.Submit(c.Request().Context(), middleware.UserID(c), body.input())
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	if res.Conflict {
		return c.JSON(http.StatusCreated, echo.Map{
			"message":       "Another publisher already lists this URL; both listings await price conflict resolution",
			"listing":       res.Listing,
			"conflictGroup": res.ConflictGroup,
		})
	}
	return c.JSON(http.StatusCreated, res.Listing)
}

// Get handles GET /v1/listings/:id.
func (h *ListingHandler) Get(c echo.Context) error {
	l, err := h.Listings.Get(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, l)
}

// Browse handles GET /v1/listings.  Query parameters: category, country,
// q, min_price, max_price, min_da, max_spam, limit and offset.
func (h *ListingHandler) Browse(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	page, err := h.Listings.Browse(c.Request().Context(), f)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Mine handles GET /v1/my/listings.
func (h *ListingHandler) Mine(c echo.Context) error {
	list, err := h.Listings.ListMine(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// patchListingRequest carries either a moderation action or an
// availability toggle, never both.
type patchListingRequest struct {
	Action    string `json:"action"`
	Reason    string `json:"reason"`
	Available *bool  `json:"available"`
}

// Patch handles PATCH /v1/listings/:id.  Moderation actions are admin-only;
// availability can be changed by the owner or an admin.
func (h *ListingHandler) Patch(c echo.Context) error {
	var body patchListingRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	id := c.Param("id")
	ctx := c.Request().Context()

	switch {
	case body.Action != "" && body.Available != nil:
		return badRequest(c, "send either action or available")
	case body.Action != "":
		if !middleware.IsAdmin(c) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		var target model.Status
		switch strings.ToLower(strings.TrimSpace(body.Action)) {
		case "approve":
			target = model.StatusApproved
		case "reject":
			target = model.StatusRejected
		default:
			return badRequest(c, "action must be approve or reject")
		}
		l, err := h.Moderation.SetStatus(ctx, id, target, strings.TrimSpace(body.Reason))
		if err != nil {
			return respondError(c, h.Logger, err)
		}
		return c.JSON(http.StatusOK, l)
	case body.Available != nil:
		l, err := h.Listings.SetAvailability(ctx, actorFrom(c), id, *body.Available)
		if err != nil {
			return respondError(c, h.Logger, err)
		}
		return c.JSON(http.StatusOK, l)
	}
	return badRequest(c, "action or available is required")
}

// Delete handles DELETE /v1/listings/:id.
func (h *ListingHandler) Delete(c echo.Context) error {
	if err := h.Listings.Delete(c.Request().Context(), actorFrom(c), c.Param("id")); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Queue handles GET /v1/admin/listings?status=, the moderation queue.
func (h *ListingHandler) Queue(c echo.Context) error {
	list, err := h.Moderation.Queue(c.Request().Context(), model.Status(c.QueryParam("status")))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

func parseFilter(c echo.Context) (model.ListingFilter, error) {
	f := model.ListingFilter{
		Category: strings.TrimSpace(c.QueryParam("category")),
		Country:  strings.TrimSpace(c.QueryParam("country")),
		Query:    strings.TrimSpace(c.QueryParam("q")),
	}
	var err error
	if f.MinPrice, err = optInt64(c, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = optInt64(c, "max_price"); err != nil {
		return f, err
	}
	if f.MinDA, err = optInt(c, "min_da"); err != nil {
		return f, err
	}
	if f.MaxSpam, err = optInt(c, "max_spam"); err != nil {
		return f, err
	}
	if v, err := optInt(c, "limit"); err != nil {
		return f, err
	} else if v != nil {
		f.Limit = *v
	}
	if v, err := optInt(c, "offset"); err != nil {
		return f, err
	} else if v != nil {
		f.Offset = *v
	}
	return f, nil
}

func optInt64(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not an integer", name, raw)
	}
	return &n, nil
}

func optInt(c echo.Context, name string) (*int, error) {
	n, err := optInt64(c, name)
	if n == nil || err != nil {
		return nil, err
	}
	v := int(*n)
	return &v, nil
}
