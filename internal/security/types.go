package security

import "time"

// EventKind enumerates security-relevant occurrences recorded by the service.
type EventKind string

const (
	EventFailedLogin        EventKind = "FAILED_LOGIN"
	EventRefreshUsed        EventKind = "REFRESH_USED"
	EventSuspiciousActivity EventKind = "SUSPICIOUS_ACTIVITY"
	EventActiveSession      EventKind = "ACTIVE_SESSION"
	EventAccountLocked      EventKind = "ACCOUNT_LOCKED"
)

// Event is an append-only security log entry, immutable once written.
// UserID is nil for failed logins against unknown emails.
type Event struct {
	ID        string
	UserID    *string
	Kind      EventKind
	IPAddress string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Filter narrows event queries. Zero values are ignored.
type Filter struct {
	Kind   EventKind
	UserID string
	Since  time.Time
	Until  time.Time
	Offset int
	Limit  int
}

// UserActivity summarises recent successful logins per user for the
// operational dashboard.
type UserActivity struct {
	UserID      string
	LastSeen    time.Time
	LastIP      string
	TotalLogins int
}
