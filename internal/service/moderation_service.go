package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
	"github.com/iliyamo/site-listing-marketplace/internal/queue"
	"github.com/iliyamo/site-listing-marketplace/internal/repository"
)

// ModerationService approves and rejects single listings outside the
// conflict flow.
type ModerationService struct {
	base
}

// NewModerationService returns a ModerationService.  A nil publisher falls
// back to queue.Discard.
func NewModerationService(store ListingStore, events EventPublisher, logger *zerolog.Logger, opts ...Option) *ModerationService {
	if events == nil {
		events = queue.Discard{}
	}
	return &ModerationService{base: newBase(store, events, logger, opts)}
}

// SetStatus moves listing id to approved or rejected.  Re-applying the
// current status is allowed and only refreshes timestamps.  Listings in a
// price conflict must be settled through conflict resolution.  The status
// check and the write share a transaction, so a submission that pulls the
// listing into a conflict meanwhile makes this fail instead.
func (s *ModerationService) SetStatus(ctx context.Context, id string, target model.Status, reason string) (*model.Listing, error) {
	if target != model.StatusApproved && target != model.StatusRejected {
		return nil, fmt.Errorf("%w: unsupported moderation status %q", ErrBadRequest, target)
	}

	now := s.now()
	var from model.Status
	var updated *model.Listing
	err := s.store.InTx(ctx, func(tx repository.ListingTx) error {
		l, err := tx.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("can't get listing %s: %w", id, err)
		}
		if !l.Status.CanModerateTo(target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, target)
		}
		from = l.Status

		if target == model.StatusApproved {
			err = tx.Approve(ctx, id, reason, now)
		} else {
			err = tx.Reject(ctx, []string{id}, reason, now)
		}
		if err != nil {
			return fmt.Errorf("can't set listing %s to %s: %w", id, target, err)
		}

		updated, err = tx.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("can't reload listing %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("listing_id", id).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("listing moderated")
	s.publish(ctx, queue.NewListingEvent(queue.EventModerated, *updated, reason, now))
	return updated, nil
}

// Queue returns listings in status, defaulting to the pending queue.
func (s *ModerationService) Queue(ctx context.Context, status model.Status) ([]model.Listing, error) {
	if status == "" {
		status = model.StatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadRequest, status)
	}
	list, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("can't list %s listings: %w", status, err)
	}
	return list, nil
}
