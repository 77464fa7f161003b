package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
	"github.com/iliyamo/site-listing-marketplace/internal/queue"
	"github.com/iliyamo/site-listing-marketplace/internal/repository"
)

const (
	DefaultApproveReason = "Selected during price conflict resolution"
	DefaultRejectReason  = "Another listing was selected during price conflict resolution"

	publishParallelLimit = 5
)

// ConflictService lets admins inspect and settle price conflicts.
type ConflictService struct {
	base
}

// NewConflictService returns a ConflictService.  A nil publisher falls back
// to queue.Discard.
func NewConflictService(store ListingStore, events EventPublisher, logger *zerolog.Logger, opts ...Option) *ConflictService {
	if events == nil {
		events = queue.Discard{}
	}
	return &ConflictService{base: newBase(store, events, logger, opts)}
}

// Groups returns every unresolved conflict group, most recently contested
// first.  Members are listed oldest first.
func (s *ConflictService) Groups(ctx context.Context) ([]model.ConflictGroup, error) {
	listings, err := s.store.ListConflicted(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't list conflicted listings: %w", err)
	}
	listings = lo.Filter(listings, func(l model.Listing, _ int) bool { return l.ConflictGroup != nil })

	byGroup := lo.GroupBy(listings, func(l model.Listing) string { return *l.ConflictGroup })
	groups := make([]model.ConflictGroup, 0, len(byGroup))
	for id, members := range byGroup {
		groups = append(groups, buildGroup(id, members))
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return latest(groups[i]).After(latest(groups[j]))
	})
	return groups, nil
}

func buildGroup(id string, members []model.Listing) model.ConflictGroup {
	sort.SliceStable(members, func(i, j int) bool { return members[i].CreatedAt.Before(members[j].CreatedAt) })

	g := model.ConflictGroup{GroupID: id, URL: members[0].URL, Websites: members}
	for _, m := range members {
		if m.IsOriginal != nil && *m.IsOriginal {
			g.URL = m.URL
			g.OriginalPrice = m.Price
			continue
		}
		// members are ascending, so the last non-original wins
		g.NewPrice = m.Price
	}
	return g
}

func latest(g model.ConflictGroup) time.Time {
	return g.Websites[len(g.Websites)-1].CreatedAt
}

// Resolve approves selectedID and rejects every other member of group that
// is still in conflict.  All transitions commit in one transaction; if any
// write fails nothing changes.  An empty reason selects the default texts.
func (s *ConflictService) Resolve(ctx context.Context, group, selectedID, reason string) (*model.Resolution, error) {
	group, selectedID = strings.TrimSpace(group), strings.TrimSpace(selectedID)
	if group == "" || selectedID == "" {
		return nil, fmt.Errorf("%w: conflictGroup and selectedWebsiteId are required", ErrBadRequest)
	}
	approveReason, rejectReason := DefaultApproveReason, DefaultRejectReason
	if r := strings.TrimSpace(reason); r != "" {
		approveReason, rejectReason = r, r
	}

	now := s.now()
	var members []model.Listing
	resolution := &model.Resolution{Approved: selectedID}

	err := s.store.InTx(ctx, func(tx repository.ListingTx) error {
		var err error
		members, err = tx.ConflictMembers(ctx, group)
		if err != nil {
			return fmt.Errorf("can't load conflict group %s: %w", group, err)
		}
		if len(members) == 0 {
			return fmt.Errorf("conflict group %s: %w", group, ErrNotFound)
		}
		if !lo.ContainsBy(members, func(l model.Listing) bool { return l.ID == selectedID }) {
			return fmt.Errorf("selected website %s is not in conflict group %s: %w", selectedID, group, ErrNotFound)
		}

		resolution.Rejected = lo.FilterMap(members, func(l model.Listing, _ int) (string, bool) {
			return l.ID, l.ID != selectedID
		})

		if err := tx.Approve(ctx, selectedID, approveReason, now); err != nil {
			return fmt.Errorf("can't approve listing %s: %w", selectedID, err)
		}
		if err := tx.Reject(ctx, resolution.Rejected, rejectReason, now); err != nil {
			return fmt.Errorf("can't reject conflict group %s: %w", group, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("conflict_group", group).
		Str("approved", selectedID).
		Strs("rejected", resolution.Rejected).
		Msg("price conflict resolved")

	s.announce(ctx, members, selectedID, approveReason, rejectReason, now)
	return resolution, nil
}

// announce publishes one event per resolved member concurrently.  Failures
// are logged by publish and never reach the caller.
func (s *ConflictService) announce(ctx context.Context, members []model.Listing, selectedID, approveReason, rejectReason string, now time.Time) {
	var g errgroup.Group
	g.SetLimit(publishParallelLimit)
	for _, m := range members {
		reason := rejectReason
		m.Status = model.StatusRejected
		if m.ID == selectedID {
			reason = approveReason
			m.Status = model.StatusApproved
		}
		ev := queue.NewListingEvent(queue.EventConflictResolved, m, reason, now)
		g.Go(func() error {
			s.publish(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()
}
