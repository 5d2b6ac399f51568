// Package audit emits structured audit entries for administrative actions.
// Audit entries are operator-facing log lines, distinct from the persisted
// security event log.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"kadro.org/internal/auth"
	"kadro.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and caller context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	zf := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		zf = append(zf, zap.String("request_id", rid))
	}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		zf = append(zf,
			zap.String("actor_id", id.User.ID),
			zap.String("actor_email", id.User.Email),
		)
	}
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", fields))
	}
	obs.Logger().Info("audit", zf...)
	return nil
}
