// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
)

// EventType doubles as the routing key of a listing event.
type EventType string

const (
	EventSubmitted        EventType = "listing.submitted"
	EventConflicted       EventType = "listing.conflicted"
	EventModerated        EventType = "listing.moderated"
	EventConflictResolved EventType = "conflict.resolved"
)

// ListingEvent is published after a listing changes state.  It carries
// enough information for downstream consumers to log, notify the publisher
// or update search indexes without querying the primary database.
type ListingEvent struct {
	Type          EventType    `json:"type"`
	ListingID     string       `json:"listing_id"`
	UserID        string       `json:"user_id"`
	URL           string       `json:"url"`
	Status        model.Status `json:"status"`
	ConflictGroup string       `json:"conflict_group,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

// NewListingEvent builds an event from the listing's current state.
func NewListingEvent(typ EventType, l model.Listing, reason string, at time.Time) ListingEvent {
	ev := ListingEvent{
		Type:       typ,
		ListingID:  l.ID,
		UserID:     l.UserID,
		URL:        l.URL,
		Status:     l.Status,
		Reason:     reason,
		OccurredAt: at,
	}
	if l.ConflictGroup != nil {
		ev.ConflictGroup = *l.ConflictGroup
	}
	return ev
}
