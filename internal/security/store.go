package security

import (
	"context"
	"time"
)

// EventStore persists the append-only security event log. Events are never
// updated or deleted; ordering by creation timestamp backs the detector's
// window queries.
type EventStore interface {
	// Append inserts a new event. Storage failures propagate as system
	// errors, never as business outcomes.
	Append(ctx context.Context, evt *Event) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, f Filter) ([]*Event, error)

	// CountFailedByIP counts FAILED_LOGIN events from the IP at or after
	// the given instant.
	CountFailedByIP(ctx context.Context, ip string, since time.Time) (int, error)

	// LastActiveSession returns the most recent ACTIVE_SESSION event for
	// the user at or after the given instant, or nil when there is none.
	LastActiveSession(ctx context.Context, userID string, since time.Time) (*Event, error)

	// ActiveUserSummaries aggregates ACTIVE_SESSION events per user since
	// the given instant, most recently seen first.
	ActiveUserSummaries(ctx context.Context, since time.Time) ([]*UserActivity, error)
}
