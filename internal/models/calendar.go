package models

import "time"

// CalendarToken holds a user's external-calendar OAuth credentials. At most
// one row per user; only the calendar sync service mutates it.
type CalendarToken struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	Expiry       time.Time `db:"expiry" json:"expiry"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FreshWithin reports whether the access token is still valid at least
// `margin` past now. Tokens inside the margin are refreshed before use.
func (t *CalendarToken) FreshWithin(now time.Time, margin time.Duration) bool {
	return t.Expiry.After(now.Add(margin))
}

// CalendarSyncResult is the outcome of a best-effort calendar sync. It is a
// value, never an error: sync failures must not unwind a committed schedule.
type CalendarSyncResult struct {
	Synced      bool   `json:"synced"`
	NeedsReauth bool   `json:"needs_reauth"`
	EventID     string `json:"event_id,omitempty"`
	Link        string `json:"link,omitempty"`
	Warning     string `json:"warning,omitempty"`
	Retryable   bool   `json:"-"`
}
