package model

import "time"

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusPriceConflict Status = "priceConflict"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPriceConflict:
		return true
	}
	return false
}

// Active reports whether a listing in this status blocks another submission
// of the same URL.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// CanModerateTo reports whether a moderator may move a listing from s to
// target.  Moderation only ever targets approved or rejected; listings in a
// price conflict are settled through conflict resolution instead.
func (s Status) CanModerateTo(target Status) bool {
	if target != StatusApproved && target != StatusRejected {
		return false
	}
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Metrics are the SEO figures a publisher reports for a website.
type Metrics struct {
	DomainAuthority  int   `db:"domain_authority" json:"domainAuthority"`
	DomainRating     int   `db:"domain_rating" json:"domainRating"`
	SpamScore        int   `db:"spam_score" json:"spamScore"`
	OrganicTraffic   int64 `db:"organic_traffic" json:"organicTraffic"`
	ReferringDomains int64 `db:"referring_domains" json:"referringDomains"`
}

// Listing is one submitted website.  Price is stored in minor currency
// units.  ConflictGroup and IsOriginal are only set once the listing has
// taken part in a price conflict.
type Listing struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	Title       string    `db:"title" json:"title"`
	URL         string    `db:"url" json:"url"`
	Description string    `db:"description" json:"description"`
	Price       int64     `db:"price" json:"price"`
	Categories  StringSet `db:"categories" json:"categories"`
	Tags        StringSet `db:"tags" json:"tags"`
	Countries   StringSet `db:"countries" json:"countries"`
	Metrics

	Status          Status     `db:"status" json:"status"`
	ConflictGroup   *string    `db:"conflict_group" json:"conflictGroup,omitempty"`
	IsOriginal      *bool      `db:"is_original" json:"isOriginal,omitempty"`
	Available       bool       `db:"available" json:"available"`
	ApprovalReason  *string    `db:"approval_reason" json:"approvalReason,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedAt      *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
}

// InGroup reports whether the listing belongs to the given conflict group.
func (l *Listing) InGroup(group string) bool {
	return l.ConflictGroup != nil && *l.ConflictGroup == group
}
