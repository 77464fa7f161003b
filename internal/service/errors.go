package service

import (
	"errors"

	"github.com/iliyamo/site-listing-marketplace/internal/repository"
)

// Sentinel errors returned by the services.  Handlers translate them into
// HTTP status codes with errors.Is; detail is added by wrapping.
var (
	// ErrBadRequest marks missing or invalid input.  No store access has
	// happened when it is returned.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound is shared with the repository so wrapped store misses
	// match as well.
	ErrNotFound = repository.ErrNotFound
	// ErrDuplicateSubmission is returned when the caller already has an
	// active listing for the URL.
	ErrDuplicateSubmission = errors.New("you already have an active listing for this URL")
	ErrForbidden           = errors.New("forbidden")
	// ErrInvalidTransition is returned for status changes the listing's
	// current state does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrBusy is returned when another submission for the same URL holds
	// the submission lock for too long.
	ErrBusy = errors.New("another submission for this URL is in progress")
)
