package model

import "strings"

// ListingFilter narrows the public browse query.  Zero values disable the
// corresponding condition.
type ListingFilter struct {
	Category string
	Country  string
	Query    string
	MinPrice *int64
	MaxPrice *int64
	MinDA    *int
	MaxSpam  *int
	Limit    int
	Offset   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging to sane bounds.
func (f *ListingFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Matches reports whether an approved, available listing satisfies the filter.
// The SQL repository expresses the same conditions in its WHERE clause.
func (f ListingFilter) Matches(l Listing) bool {
	if l.Status != StatusApproved || !l.Available {
		return false
	}
	if f.Category != "" && !l.Categories.Contains(f.Category) {
		return false
	}
	if f.Country != "" && !l.Countries.Contains(f.Country) {
		return false
	}
	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return false
	}
	if f.MinDA != nil && l.DomainAuthority < *f.MinDA {
		return false
	}
	if f.MaxSpam != nil && l.SpamScore > *f.MaxSpam {
		return false
	}
	if f.Query != "" && !containsFold(l.Title, f.Query) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
