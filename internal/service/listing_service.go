package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/site-listing-marketplace/internal/lock"
	"github.com/iliyamo/site-listing-marketplace/internal/model"
	"github.com/iliyamo/site-listing-marketplace/internal/queue"
	"github.com/iliyamo/site-listing-marketplace/internal/repository"
)

// SubmitInput is what a publisher sends for a new listing.  Price is a
// pointer so a missing price can be told apart from a free listing.
type SubmitInput struct {
	Title       string
	URL         string
	Description string
	Price       *int64
	Categories  []string
	Tags        []string
	Countries   []string
	Metrics     model.Metrics
}

// SubmitResult is the outcome of a submission.  When Conflict is set the new
// listing and Existing now share ConflictGroup and await an admin decision.
type SubmitResult struct {
	Listing       model.Listing
	Existing      *model.Listing
	Conflict      bool
	ConflictGroup string
}

// ListingService handles publisher-facing listing operations.
type ListingService struct {
	base
	locker Locker
}

// NewListingService returns a ListingService.  A nil locker falls back to
// lock.Noop and a nil publisher to queue.Discard.
func NewListingService(store ListingStore, locker Locker, events EventPublisher, logger *zerolog.Logger, opts ...Option) *ListingService {
	if locker == nil {
		locker = lock.Noop{}
	}
	if events == nil {
		events = queue.Discard{}
	}
	return &ListingService{base: newBase(store, events, logger, opts), locker: locker}
}

// NormalizeURL is the form under which URLs are stored and compared.
func NormalizeURL(raw string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
}

func (in SubmitInput) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrBadRequest)
	case NormalizeURL(in.URL) == "":
		return fmt.Errorf("%w: url is required", ErrBadRequest)
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description is required", ErrBadRequest)
	case in.Price == nil:
		return fmt.Errorf("%w: price is required", ErrBadRequest)
	case *in.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrBadRequest)
	}
	m := in.Metrics
	if m.DomainAuthority < 0 || m.DomainRating < 0 || m.SpamScore < 0 || m.OrganicTraffic < 0 || m.ReferringDomains < 0 {
		return fmt.Errorf("%w: metrics must not be negative", ErrBadRequest)
	}
	return nil
}

// Submit creates a listing for userID.  If another user already has an
// active listing for the same URL, both listings are moved into a new
// conflict group.  The lookup, insert and grouping commit as one
// transaction, and concurrent submissions of one URL are serialised by the
// locker.
func (s *ListingService) Submit(ctx context.Context, userID string, in SubmitInput) (*SubmitResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrBadRequest)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	url := NormalizeURL(in.URL)
	release, err := s.locker.Acquire(ctx, url)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("can't lock url: %w", err)
	}
	defer release()

	now := s.now()
	listing := model.Listing{
		ID:          s.newID(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		URL:         url,
		Description: strings.TrimSpace(in.Description),
		Price:       *in.Price,
		Categories:  model.NewStringSet(in.Categories...),
		Tags:        model.NewStringSet(in.Tags...),
		Countries:   model.NewStringSet(in.Countries...),
		Metrics:     in.Metrics,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	result := &SubmitResult{}

	err = s.store.InTx(ctx, func(tx repository.ListingTx) error {
		// the oldest active listing may belong to someone else while the
		// caller still has a newer one for the same URL
		own, err := tx.FindActiveByOwner(ctx, url, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("can't look up own listing: %w", err)
		}
		if own != nil {
			return ErrDuplicateSubmission
		}

		existing, err := tx.FindActiveByURL(ctx, url)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("can't look up active listing: %w", err)
		}

		if err := tx.Create(ctx, &listing); err != nil {
			return fmt.Errorf("can't create listing: %w", err)
		}
		if existing == nil {
			return nil
		}

		group := s.newID()
		if err := groupConflict(ctx, tx, &listing, existing, group, now); err != nil {
			return err
		}
		result.Existing = existing
		result.Conflict = true
		result.ConflictGroup = group
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Listing = listing

	if result.Conflict {
		s.logger.Info().
			Str("conflict_group", result.ConflictGroup).
			Str("listing_id", listing.ID).
			Str("original_id", result.Existing.ID).
			Str("url", url).
			Msg("price conflict created")
		s.publish(ctx, queue.NewListingEvent(queue.EventConflicted, *result.Existing, "", now))
		s.publish(ctx, queue.NewListingEvent(queue.EventConflicted, listing, "", now))
	} else {
		s.publish(ctx, queue.NewListingEvent(queue.EventSubmitted, listing, "", now))
	}
	return result, nil
}

// groupConflict links the new listing and the one it collides with under
// group.  The pre-existing listing is the original.
func groupConflict(ctx context.Context, tx repository.ListingTx, newListing, existing *model.Listing, group string, now time.Time) error {
	if err := tx.AssignConflict(ctx, existing.ID, group, true, now); err != nil {
		return fmt.Errorf("can't assign original listing to conflict group: %w", err)
	}
	if err := tx.AssignConflict(ctx, newListing.ID, group, false, now); err != nil {
		return fmt.Errorf("can't assign new listing to conflict group: %w", err)
	}
	markConflict(existing, group, true, now)
	markConflict(newListing, group, false, now)
	return nil
}

func markConflict(l *model.Listing, group string, original bool, now time.Time) {
	l.Status = model.StatusPriceConflict
	l.ConflictGroup = &group
	l.IsOriginal = &original
	l.Available = false
	l.UpdatedAt = now
}

// Get returns a listing.  Listings that are not approved are only visible
// to their owner and to admins.
func (s *ListingService) Get(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("can't get listing %s: %w", id, err)
	}
	if l.Status != model.StatusApproved && !actor.Admin && actor.UserID != l.UserID {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return l, nil
}

// BrowsePage is one page of the public catalogue with the paging that was
// actually applied.
type BrowsePage struct {
	Items  []model.Listing `json:"items"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// Browse returns the approved, purchasable listings matching f.  Paging is
// clamped here; stores receive a normalised filter.
func (s *ListingService) Browse(ctx context.Context, f model.ListingFilter) (*BrowsePage, error) {
	f.Normalize()
	list, err := s.store.Browse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("can't browse listings: %w", err)
	}
	return &BrowsePage{Items: list, Limit: f.Limit, Offset: f.Offset}, nil
}

// ListMine returns every listing the user has submitted.
func (s *ListingService) ListMine(ctx context.Context, userID string) ([]model.Listing, error) {
	list, err := s.store.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("can't list listings of %s: %w", userID, err)
	}
	return list, nil
}

// SetAvailability toggles whether an approved listing can be bought.  Only
// the owner or an admin may do this.
func (s *ListingService) SetAvailability(ctx context.Context, actor Actor, id string, available bool) (*model.Listing, error) {
	l, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if l.Status != model.StatusApproved {
		return nil, fmt.Errorf("%w: only approved listings can change availability", ErrInvalidTransition)
	}
	now := s.now()
	if err := s.store.SetAvailability(ctx, id, available, now); err != nil {
		return nil, fmt.Errorf("can't update availability of %s: %w", id, err)
	}
	l.Available = available
	l.UpdatedAt = now
	return l, nil
}

// Delete removes a listing.  Owners cannot delete a listing that is part of
// an unresolved price conflict; admins can delete anything.
func (s *ListingService) Delete(ctx context.Context, actor Actor, id string) error {
	l, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if l.Status == model.StatusPriceConflict && !actor.Admin {
		return fmt.Errorf("%w: listing is awaiting price conflict resolution", ErrInvalidTransition)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("can't delete listing %s: %w", id, err)
	}
	s.logger.Info().Str("listing_id", id).Str("user_id", actor.UserID).Msg("listing deleted")
	return nil
}

func (s *ListingService) owned(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("can't get listing %s: %w", id, err)
	}
	if !actor.Admin && actor.UserID != l.UserID {
		return nil, ErrForbidden
	}
	return l, nil
}
