package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
	"github.com/iliyamo/site-listing-marketplace/internal/model/modeltesting"
	"github.com/iliyamo/site-listing-marketplace/internal/queue"
	"github.com/iliyamo/site-listing-marketplace/internal/repository"
	"github.com/iliyamo/site-listing-marketplace/internal/repository/repositorytesting"
	"github.com/iliyamo/site-listing-marketplace/internal/service"
)

func TestSetStatusTransitions(t *testing.T) {
	cases := []struct {
		from   model.Status
		to     model.Status
		wantOK bool
	}{
		{model.StatusPending, model.StatusApproved, true},
		{model.StatusPending, model.StatusRejected, true},
		{model.StatusApproved, model.StatusRejected, true},
		{model.StatusRejected, model.StatusApproved, true},
		{model.StatusApproved, model.StatusApproved, true},
		{model.StatusRejected, model.StatusRejected, true},
		{model.StatusPriceConflict, model.StatusApproved, false},
		{model.StatusPriceConflict, model.StatusRejected, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			l := modeltesting.FakeListing(func(l *model.Listing) { l.Status = tc.from })
			store := repositorytesting.NewMemoryStore(l)
			pub := &recordingPublisher{}
			svc := service.NewModerationService(store, pub, &nopLogger, testOptions()...)

			got, err := svc.SetStatus(context.Background(), l.ID, tc.to, "checked")
			if !tc.wantOK {
				assert.ErrorIs(t, err, service.ErrInvalidTransition)
				stored, _ := store.Listing(l.ID)
				assert.Equal(t, tc.from, stored.Status)
				assert.Empty(t, pub.Events())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.to, got.Status)
			assert.Equal(t, tc.to == model.StatusApproved, got.Available)
			if tc.to == model.StatusApproved {
				require.NotNil(t, got.ApprovedAt)
				assert.Equal(t, "checked", *got.ApprovalReason)
			} else {
				require.NotNil(t, got.RejectedAt)
				assert.Equal(t, "checked", *got.RejectionReason)
			}
			assert.Equal(t, []queue.EventType{queue.EventModerated}, pub.Types())
		})
	}
}

// racingStore commits a competing change right before the next transaction
// starts, as if it won the row lock.
type racingStore struct {
	*repositorytesting.MemoryStore
	before func()
}

func (s *racingStore) InTx(ctx context.Context, fn func(tx repository.ListingTx) error) error {
	if before := s.before; before != nil {
		s.before = nil
		before()
	}
	return s.MemoryStore.InTx(ctx, fn)
}

func TestSetStatusSeesConflictCommittedMeanwhile(t *testing.T) {
	memory := repositorytesting.NewMemoryStore()
	listings := service.NewListingService(memory, nil, nil, &nopLogger, testOptions()...)
	ctx := context.Background()

	first, err := listings.Submit(ctx, "u1", submitInput("a.com", 1000))
	require.NoError(t, err)

	var contender *service.SubmitResult
	store := &racingStore{MemoryStore: memory, before: func() {
		contender, err = listings.Submit(ctx, "u2", submitInput("a.com", 1400))
		require.NoError(t, err)
	}}
	pub := &recordingPublisher{}
	svc := service.NewModerationService(store, pub, &nopLogger, testOptions()...)

	_, err = svc.SetStatus(ctx, first.Listing.ID, model.StatusApproved, "")
	require.ErrorIs(t, err, service.ErrInvalidTransition)

	require.NotNil(t, contender)
	require.True(t, contender.Conflict)
	for _, id := range []string{first.Listing.ID, contender.Listing.ID} {
		l, ok := memory.Listing(id)
		require.True(t, ok)
		assert.Equal(t, model.StatusPriceConflict, l.Status)
		assert.Nil(t, l.ApprovedAt)
	}
	assert.Empty(t, pub.Events())
}

func TestSetStatusIdempotentRefreshesTimestamps(t *testing.T) {
	l := modeltesting.FakeListing()
	store := repositorytesting.NewMemoryStore(l)
	svc := service.NewModerationService(store, nil, &nopLogger, testOptions()...)

	first, err := svc.SetStatus(context.Background(), l.ID, model.StatusApproved, "")
	require.NoError(t, err)
	second, err := svc.SetStatus(context.Background(), l.ID, model.StatusApproved, "")
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, second.Status)
	assert.True(t, second.ApprovedAt.After(*first.ApprovedAt))
	assert.Nil(t, second.ApprovalReason)
}

func TestSetStatusErrors(t *testing.T) {
	l := modeltesting.FakeListing()
	store := repositorytesting.NewMemoryStore(l)
	svc := service.NewModerationService(store, nil, &nopLogger)

	_, err := svc.SetStatus(context.Background(), l.ID, model.StatusPriceConflict, "")
	assert.ErrorIs(t, err, service.ErrBadRequest)
	_, err = svc.SetStatus(context.Background(), l.ID, model.StatusPending, "")
	assert.ErrorIs(t, err, service.ErrBadRequest)
	_, err = svc.SetStatus(context.Background(), "missing", model.StatusApproved, "")
	assert.ErrorIs(t, err, service.ErrNotFound)

	store.FailOn("Approve", assert.AnError)
	_, err = svc.SetStatus(context.Background(), l.ID, model.StatusApproved, "")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestModerationQueue(t *testing.T) {
	pending := modeltesting.FakeListing()
	rejected := modeltesting.FakeListing(func(l *model.Listing) { l.Status = model.StatusRejected })
	svc := service.NewModerationService(repositorytesting.NewMemoryStore(pending, rejected), nil, &nopLogger)

	list, err := svc.Queue(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)

	list, err = svc.Queue(context.Background(), model.StatusRejected)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rejected.ID, list[0].ID)

	_, err = svc.Queue(context.Background(), "archived")
	assert.ErrorIs(t, err, service.ErrBadRequest)
}
