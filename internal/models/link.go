package models

import "time"

// Link represents a shortened link and its associated metadata.
type Link struct {
	// ID is the unique identifier for the link record.
	ID int64
	// Code is the short code associated with the target URL.
	// It is immutable once assigned and unique across all links.
	Code string
	// TargetURL is the original, full-length URL that the short code points to.
	TargetURL string
	// Owner is the opaque identifier of the principal that created the link.
	Owner string
	// ClickCount tracks the number of times the link has been resolved.
	ClickCount int64
	// CreatedAt is the timestamp indicating when the link was created.
	CreatedAt time.Time
	// ExpiresAt is the optional expiry timestamp. A nil value means the
	// link never expires.
	ExpiresAt *time.Time
}

// Expired reports whether the link has an expiry set and it lies in the past.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}
