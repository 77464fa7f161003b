package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/site-listing-marketplace/internal/middleware"
	"github.com/iliyamo/site-listing-marketplace/internal/service"
)

// statusFor maps service errors onto HTTP status codes.  Anything it does
// not recognise is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBadRequest), errors.Is(err, service.ErrDuplicateSubmission):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}.  Internal errors are logged
// and their detail is not sent to the client.
func respondError(c echo.Context, logger *zerolog.Logger, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Str("user_id", middleware.UserID(c)).
			Msg("request failed")
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func actorFrom(c echo.Context) service.Actor {
	return service.Actor{UserID: middleware.UserID(c), Admin: middleware.IsAdmin(c)}
}
