package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kadro.org/internal/security"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 200
)

func (a *API) handleSecurityEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	filter, err := parseEventFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter.UserID = strings.TrimSpace(r.URL.Query().Get("user_id"))

	events, err := a.security.Events(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": toEventResponses(events),
		"as_of": time.Now().UTC(),
	})
}

func (a *API) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	days := 7
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 90 {
			writeError(w, r, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = v
	}

	summaries, err := a.security.ActiveUsers(r.Context(), days)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	type activeUserResponse struct {
		UserID      string    `json:"user_id"`
		LastSeen    time.Time `json:"last_seen"`
		LastIP      string    `json:"last_ip"`
		TotalLogins int       `json:"total_logins"`
	}
	out := make([]activeUserResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, activeUserResponse{
			UserID:      s.UserID,
			LastSeen:    s.LastSeen,
			LastIP:      s.LastIP,
			TotalLogins: s.TotalLogins,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "days": days})
}

// parseEventFilter reads shared query parameters for event listing endpoints.
func parseEventFilter(r *http.Request) (security.Filter, error) {
	q := r.URL.Query()
	f := security.Filter{Limit: defaultEventLimit}

	if kind := strings.TrimSpace(q.Get("event_type")); kind != "" {
		f.Kind = security.EventKind(strings.ToUpper(kind))
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxEventLimit {
			return f, errors.New("limit must be between 1 and 200")
		}
		f.Limit = v
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
		f.Offset = v
	}
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("since must be an RFC3339 timestamp")
		}
		f.Since = t
	}
	if raw := strings.TrimSpace(q.Get("until")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New("until must be an RFC3339 timestamp")
		}
		f.Until = t
	}
	return f, nil
}
