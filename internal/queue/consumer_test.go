package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
)

func TestAuditConsumerHandleMessage(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "logs", "moderation.log")
	c := NewAuditConsumer("", "listings", "listings.audit", path, &logger)

	group := "g1"
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	ev := NewListingEvent(EventConflictResolved, model.Listing{
		ID:            "l2",
		UserID:        "u2",
		URL:           "a.com",
		Status:        model.StatusApproved,
		ConflictGroup: &group,
	}, "best price", at)

	body, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, c.handleMessage(body))
	require.NoError(t, c.handleMessage(body))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := `[2026-03-04T05:06:07Z] conflict.resolved | listing_id=l2 | user_id=u2 | url="a.com" | status=approved | conflict_group=g1 | reason="best price"` + "\n"
	assert.Equal(t, line+line, string(raw))
}

func TestAuditConsumerRejectsGarbage(t *testing.T) {
	logger := zerolog.Nop()
	c := NewAuditConsumer("", "listings", "q", filepath.Join(t.TempDir(), "a.log"), &logger)

	assert.Error(t, c.handleMessage([]byte("{not json")))
}

func TestFormatAuditLineOmitsEmptyFields(t *testing.T) {
	line := formatAuditLine(ListingEvent{
		Type:       EventSubmitted,
		ListingID:  "l1",
		UserID:     "u1",
		URL:        "b.com",
		Status:     model.StatusPending,
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, `[2026-01-01T00:00:00Z] listing.submitted | listing_id=l1 | user_id=u1 | url="b.com" | status=pending`+"\n", line)
}
