package security

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kadro.org/internal/ids"
	"kadro.org/internal/obs"
	"kadro.org/internal/stream"
)

const (
	// lockoutWindow is the sliding window for the failed-login lockout rule.
	lockoutWindow = 5 * time.Minute
	// lockoutThreshold is the failed-login count at which an IP is locked out.
	lockoutThreshold = 5
	// suspiciousWindow is the lookback for the IP-change detector.
	suspiciousWindow = 15 * time.Minute
)

// Service owns the security event log and the anomaly detection rules
// evaluated against it. Appends fan out to the live stream best-effort.
type Service struct {
	store  EventStore
	stream *stream.Stream
	now    func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the security event service. The stream may be nil,
// in which case events are logged without broadcasting.
func NewService(store EventStore, st *stream.Stream, opts ...Option) *Service {
	s := &Service{store: store, stream: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogEvent appends a security event and then broadcasts it to connected
// observers. The broadcast happens after the write is durable and can never
// fail or delay the write path.
func (s *Service) LogEvent(ctx context.Context, kind EventKind, ip string, userID *string, metadata map[string]string) (*Event, error) {
	evt := &Event{
		ID:        ids.New(),
		UserID:    userID,
		Kind:      kind,
		IPAddress: ip,
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Append(ctx, evt); err != nil {
		return nil, fmt.Errorf("append security event: %w", err)
	}
	s.broadcast(evt)
	return evt, nil
}

// Events returns log entries matching the filter, newest first.
func (s *Service) Events(ctx context.Context, f Filter) ([]*Event, error) {
	return s.store.Query(ctx, f)
}

// ActiveUsers aggregates users with successful logins over the trailing
// number of days.
func (s *Service) ActiveUsers(ctx context.Context, days int) ([]*UserActivity, error) {
	if days <= 0 {
		days = 7
	}
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	return s.store.ActiveUserSummaries(ctx, since)
}

// IsIPLockedOut reports whether the IP accumulated enough failed logins in
// the trailing window. The window slides: it is evaluated at call time, not
// precomputed.
func (s *Service) IsIPLockedOut(ctx context.Context, ip string) (bool, error) {
	since := s.now().UTC().Add(-lockoutWindow)
	count, err := s.store.CountFailedByIP(ctx, ip, since)
	if err != nil {
		return false, fmt.Errorf("count failed logins: %w", err)
	}
	return count >= lockoutThreshold, nil
}

// CheckSuspiciousActivity logs a SUSPICIOUS_ACTIVITY event when the user's
// most recent login inside the window came from a different IP. Detection
// only: no action is taken beyond the log entry.
func (s *Service) CheckSuspiciousActivity(ctx context.Context, userID, currentIP string) error {
	since := s.now().UTC().Add(-suspiciousWindow)
	last, err := s.store.LastActiveSession(ctx, userID, since)
	if err != nil {
		return fmt.Errorf("load last login: %w", err)
	}
	if last == nil || last.IPAddress == currentIP {
		return nil
	}
	_, err = s.LogEvent(ctx, EventSuspiciousActivity, currentIP, &userID, map[string]string{
		"reason":      "IP change within 15 minutes",
		"previous_ip": last.IPAddress,
	})
	if err != nil {
		return err
	}
	obs.ObserveSuspicious()
	return nil
}

func (s *Service) broadcast(evt *Event) {
	if s.stream == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			obs.Logger().Warn("security event broadcast failed",
				zap.Any("panic", r), zap.String("event_id", evt.ID))
		}
	}()
	payload := stream.Event{
		ID:        evt.ID,
		EventType: string(evt.Kind),
		IPAddress: evt.IPAddress,
		Metadata:  evt.Metadata,
		CreatedAt: evt.CreatedAt,
	}
	if evt.UserID != nil {
		payload.UserID = *evt.UserID
	}
	s.stream.Publish(payload)
}
