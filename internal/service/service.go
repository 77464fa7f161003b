// Package service implements the listing marketplace workflows: submission
// with duplicate-URL conflict detection, conflict resolution and
// moderation.  Services own the business rules; persistence and messaging
// are reached through the interfaces below.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
	"github.com/iliyamo/site-listing-marketplace/internal/queue"
	"github.com/iliyamo/site-listing-marketplace/internal/repository"
)

// ListingStore is the persistence the services need.  Status transitions
// go through InTx so the check and the write commit atomically.
type ListingStore interface {
	InTx(ctx context.Context, fn func(tx repository.ListingTx) error) error
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	Browse(ctx context.Context, f model.ListingFilter) ([]model.Listing, error)
	ListByOwner(ctx context.Context, userID string) ([]model.Listing, error)
	ListByStatus(ctx context.Context, status model.Status) ([]model.Listing, error)
	ListConflicted(ctx context.Context) ([]model.Listing, error)
	SetAvailability(ctx context.Context, id string, available bool, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// Locker serialises work on a key across instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// EventPublisher publishes listing events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ListingEvent) error
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Admin  bool
}

// Option customises a service.
type Option func(*base)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithIDGenerator overrides how listing and conflict group ids are made.
func WithIDGenerator(newID func() string) Option {
	return func(b *base) { b.newID = newID }
}

type base struct {
	store  ListingStore
	events EventPublisher
	logger *zerolog.Logger
	now    func() time.Time
	newID  func() string
}

func newBase(store ListingStore, events EventPublisher, logger *zerolog.Logger, opts []Option) base {
	b := base{
		store:  store,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// publish sends ev and only logs failures; events never fail a request.
func (b base) publish(ctx context.Context, ev queue.ListingEvent) {
	if err := b.events.Publish(ctx, ev); err != nil {
		b.logger.Error().
			Err(err).
			Str("event", string(ev.Type)).
			Str("listing_id", ev.ListingID).
			Msg("can't publish listing event")
	}
}
