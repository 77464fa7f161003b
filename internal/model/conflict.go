package model

// ConflictGroup is the admin view of listings contesting the same URL.
type ConflictGroup struct {
	GroupID       string    `json:"groupId"`
	URL           string    `json:"url"`
	Websites      []Listing `json:"websites"`
	OriginalPrice int64     `json:"originalPrice"`
	NewPrice      int64     `json:"newPrice"`
}

// Resolution reports the outcome of resolving a conflict group.
type Resolution struct {
	Approved string   `json:"approved"`
	Rejected []string `json:"rejected"`
}
