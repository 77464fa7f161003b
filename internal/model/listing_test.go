package model

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCanModerateTo(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusRejected, true},
		{StatusRejected, StatusApproved, true},
		{StatusApproved, StatusApproved, true},
		{StatusApproved, StatusPending, false},
		{StatusPriceConflict, StatusApproved, false},
		{StatusPriceConflict, StatusRejected, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanModerateTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStringSet(t *testing.T) {
	set := NewStringSet(" tech ", "Tech", "", "news")
	assert.Equal(t, StringSet{"tech", "news"}, set)
	assert.True(t, set.Contains("TECH"))

	v, err := set.Value()
	require.NoError(t, err)
	assert.Equal(t, `["tech","news"]`, v)

	var scanned StringSet
	require.NoError(t, scanned.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringSet{"a", "b"}, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)

	assert.Error(t, scanned.Scan(42))
}

func TestListingFilterMatches(t *testing.T) {
	l := Listing{
		Title:      "Daily Tech Review",
		Price:      5000,
		Categories: StringSet{"tech"},
		Countries:  StringSet{"US"},
		Metrics:    Metrics{DomainAuthority: 40, SpamScore: 3},
		Status:     StatusApproved,
		Available:  true,
	}

	assert.True(t, ListingFilter{}.Matches(l))
	assert.True(t, ListingFilter{Category: "TECH", Country: "us", Query: "tech"}.Matches(l))
	assert.False(t, ListingFilter{MinPrice: lo.ToPtr(int64(6000))}.Matches(l))
	assert.False(t, ListingFilter{MaxPrice: lo.ToPtr(int64(100))}.Matches(l))
	assert.False(t, ListingFilter{MinDA: lo.ToPtr(50)}.Matches(l))
	assert.False(t, ListingFilter{MaxSpam: lo.ToPtr(2)}.Matches(l))

	l.Available = false
	assert.False(t, ListingFilter{}.Matches(l))
}

func TestListingFilterNormalize(t *testing.T) {
	f := ListingFilter{Limit: 1000, Offset: -3}
	f.Normalize()
	assert.Equal(t, MaxPageSize, f.Limit)
	assert.Zero(t, f.Offset)

	f = ListingFilter{}
	f.Normalize()
	assert.Equal(t, DefaultPageSize, f.Limit)
}
