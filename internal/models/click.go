package models

import "time"

// ClickEvent is an immutable record of a successfully resolved redirect.
// Events are appended once per redirect and consumed by the analytics
// pipeline; they are never updated.
type ClickEvent struct {
	ID         string
	Code       string
	OccurredAt time.Time
	IPAddress  string
	UserAgent  string
	Referer    string
}
