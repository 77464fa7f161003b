package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
	"github.com/iliyamo/site-listing-marketplace/internal/model/modeltesting"
	"github.com/iliyamo/site-listing-marketplace/internal/queue"
	"github.com/iliyamo/site-listing-marketplace/internal/repository/repositorytesting"
	"github.com/iliyamo/site-listing-marketplace/internal/service"
)

func conflictMember(group, url string, price int64, original bool, createdAt time.Time) model.Listing {
	return modeltesting.FakeListing(func(l *model.Listing) {
		l.URL = url
		l.Price = price
		l.Status = model.StatusPriceConflict
		l.ConflictGroup = lo.ToPtr(group)
		l.IsOriginal = lo.ToPtr(original)
		l.CreatedAt = createdAt
		l.UpdatedAt = createdAt
	})
}

func TestSubmitThenResolve(t *testing.T) {
	store := repositorytesting.NewMemoryStore()
	pub := &recordingPublisher{}
	opts := testOptions()
	listings := service.NewListingService(store, nil, pub, &nopLogger, opts...)
	conflicts := service.NewConflictService(store, pub, &nopLogger, opts...)
	ctx := context.Background()

	l1, err := listings.Submit(ctx, "u1", submitInput("a.com", 1000))
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, l1.Listing.Status)

	l2, err := listings.Submit(ctx, "u2", submitInput("a.com", 2000))
	require.NoError(t, err)
	require.True(t, l2.Conflict)

	groups, err := conflicts.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, l2.ConflictGroup, groups[0].GroupID)
	assert.Equal(t, "a.com", groups[0].URL)
	assert.Equal(t, int64(1000), groups[0].OriginalPrice)
	assert.Equal(t, int64(2000), groups[0].NewPrice)

	res, err := conflicts.Resolve(ctx, l2.ConflictGroup, l2.Listing.ID, "")
	require.NoError(t, err)
	assert.Equal(t, l2.Listing.ID, res.Approved)
	assert.Equal(t, []string{l1.Listing.ID}, res.Rejected)

	approved, _ := store.Listing(l2.Listing.ID)
	rejected, _ := store.Listing(l1.Listing.ID)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.True(t, approved.Available)
	require.NotNil(t, approved.ApprovalReason)
	assert.Equal(t, service.DefaultApproveReason, *approved.ApprovalReason)
	assert.NotNil(t, approved.ApprovedAt)

	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.False(t, rejected.Available)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, service.DefaultRejectReason, *rejected.RejectionReason)
	assert.NotNil(t, rejected.RejectedAt)

	groups, err = conflicts.Groups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestResolveRejectsEveryOtherMember(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := conflictMember("g1", "a.com", 100, true, base)
	b := conflictMember("g1", "a.com", 200, false, base.Add(time.Minute))
	c := conflictMember("g1", "a.com", 300, false, base.Add(2*time.Minute))
	outsider := conflictMember("g2", "b.com", 400, true, base)
	store := repositorytesting.NewMemoryStore(a, b, c, outsider)
	pub := &recordingPublisher{}
	svc := service.NewConflictService(store, pub, &nopLogger, testOptions()...)

	res, err := svc.Resolve(context.Background(), "g1", b.ID, "better offer")
	require.NoError(t, err)
	assert.Equal(t, b.ID, res.Approved)
	assert.ElementsMatch(t, []string{a.ID, c.ID}, res.Rejected)

	for _, id := range []string{a.ID, c.ID} {
		l, _ := store.Listing(id)
		assert.Equal(t, model.StatusRejected, l.Status)
		require.NotNil(t, l.RejectionReason)
		assert.Equal(t, "better offer", *l.RejectionReason)
	}
	l, _ := store.Listing(b.ID)
	assert.Equal(t, model.StatusApproved, l.Status)
	assert.Equal(t, "better offer", *l.ApprovalReason)

	untouched, _ := store.Listing(outsider.ID)
	assert.Equal(t, model.StatusPriceConflict, untouched.Status)

	events := pub.Events()
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, queue.EventConflictResolved, ev.Type)
		assert.Equal(t, "g1", ev.ConflictGroup)
		if ev.ListingID == b.ID {
			assert.Equal(t, model.StatusApproved, ev.Status)
		} else {
			assert.Equal(t, model.StatusRejected, ev.Status)
		}
	}
}

func TestResolveNotFound(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := conflictMember("g1", "a.com", 100, true, base)
	b := conflictMember("g1", "a.com", 200, false, base.Add(time.Minute))
	other := conflictMember("g2", "b.com", 100, true, base)

	cases := map[string]struct {
		group    string
		selected string
	}{
		"unknown group":         {group: "nope", selected: a.ID},
		"unknown selection":     {group: "g1", selected: "nope"},
		"selection other group": {group: "g1", selected: other.ID},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := repositorytesting.NewMemoryStore(a, b, other)
			pub := &recordingPublisher{}
			svc := service.NewConflictService(store, pub, &nopLogger, testOptions()...)

			_, err := svc.Resolve(context.Background(), tc.group, tc.selected, "")
			assert.ErrorIs(t, err, service.ErrNotFound)

			for _, l := range store.All() {
				assert.Equal(t, model.StatusPriceConflict, l.Status)
			}
			assert.Empty(t, pub.Events())
		})
	}
}

func TestResolveAlreadyResolvedGroup(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := conflictMember("g1", "a.com", 100, true, base)
	b := conflictMember("g1", "a.com", 200, false, base.Add(time.Minute))
	store := repositorytesting.NewMemoryStore(a, b)
	svc := service.NewConflictService(store, nil, &nopLogger, testOptions()...)

	_, err := svc.Resolve(context.Background(), "g1", a.ID, "")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "g1", b.ID, "")
	assert.ErrorIs(t, err, service.ErrNotFound)
	l, _ := store.Listing(a.ID)
	assert.Equal(t, model.StatusApproved, l.Status)
}

func TestResolveBadRequest(t *testing.T) {
	store := repositorytesting.NewMemoryStore()
	store.FailOn("ConflictMembers", assert.AnError)
	svc := service.NewConflictService(store, nil, &nopLogger)

	_, err := svc.Resolve(context.Background(), "", "l1", "")
	assert.ErrorIs(t, err, service.ErrBadRequest)
	_, err = svc.Resolve(context.Background(), "g1", " ", "")
	assert.ErrorIs(t, err, service.ErrBadRequest)
}

func TestResolveRollsBackOnRejectFailure(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := conflictMember("g1", "a.com", 100, true, base)
	b := conflictMember("g1", "a.com", 200, false, base.Add(time.Minute))
	store := repositorytesting.NewMemoryStore(a, b)
	store.FailOn("Reject", assert.AnError)
	pub := &recordingPublisher{}
	svc := service.NewConflictService(store, pub, &nopLogger, testOptions()...)

	_, err := svc.Resolve(context.Background(), "g1", b.ID, "")
	require.ErrorIs(t, err, assert.AnError)

	for _, l := range store.All() {
		assert.Equal(t, model.StatusPriceConflict, l.Status, l.ID)
		assert.Nil(t, l.ApprovedAt)
	}
	assert.Empty(t, pub.Events())
}

func TestResolvePublishFailureIsIgnored(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := conflictMember("g1", "a.com", 100, true, base)
	b := conflictMember("g1", "a.com", 200, false, base.Add(time.Minute))
	store := repositorytesting.NewMemoryStore(a, b)
	svc := service.NewConflictService(store, &recordingPublisher{err: assert.AnError}, &nopLogger, testOptions()...)

	res, err := svc.Resolve(context.Background(), "g1", a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.Approved)
}

func TestGroupsOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old1 := conflictMember("old", "a.com", 100, true, base)
	old2 := conflictMember("old", "a.com", 150, false, base.Add(time.Minute))
	new1 := conflictMember("new", "b.com", 500, true, base.Add(time.Hour))
	new2 := conflictMember("new", "b.com", 700, false, base.Add(2*time.Hour))
	new3 := conflictMember("new", "b.com", 900, false, base.Add(3*time.Hour))
	pending := modeltesting.FakeListing()
	svc := service.NewConflictService(repositorytesting.NewMemoryStore(old1, old2, new1, new2, new3, pending), nil, &nopLogger)

	groups, err := svc.Groups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "new", groups[0].GroupID)
	assert.Equal(t, "b.com", groups[0].URL)
	assert.Equal(t, int64(500), groups[0].OriginalPrice)
	assert.Equal(t, int64(900), groups[0].NewPrice)
	assert.Equal(t, []string{new1.ID, new2.ID, new3.ID},
		lo.Map(groups[0].Websites, func(l model.Listing, _ int) string { return l.ID }))

	assert.Equal(t, "old", groups[1].GroupID)
	assert.Equal(t, int64(100), groups[1].OriginalPrice)
	assert.Equal(t, int64(150), groups[1].NewPrice)
}

func TestGroupsStoreError(t *testing.T) {
	store := repositorytesting.NewMemoryStore()
	store.FailOn("ListConflicted", assert.AnError)
	svc := service.NewConflictService(store, nil, &nopLogger)

	_, err := svc.Groups(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
