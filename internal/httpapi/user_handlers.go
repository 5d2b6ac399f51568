package httpapi

import (
	"net/http"
	"strings"

	"kadro.org/internal/auth"
	"kadro.org/internal/security"
)

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	if parts[0] == "me" {
		switch {
		case len(parts) == 1:
			a.handleMe(w, r)
		case len(parts) == 2 && parts[1] == "sessions":
			a.handleMySessions(w, r)
		case len(parts) == 3 && parts[1] == "sessions":
			a.handleMySessionResource(w, r, parts[2])
		case len(parts) == 2 && parts[1] == "security-events":
			a.handleMySecurityEvents(w, r)
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
		return
	}

	if len(parts) == 2 && parts[1] == "role" {
		a.handleChangeRole(w, r, parts[0])
		return
	}
	writeError(w, r, http.StatusNotFound, "resource not found")
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(id.User))
}

func (a *API) handleMySessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	sessions, err := a.auth.SessionsForUser(r.Context(), id.User.ID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s, id.Claims.SessionID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (a *API) handleMySessionResource(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := a.auth.RevokeUserSession(r.Context(), id.User.ID, sessionID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "session.revoked", map[string]any{"session_id": sessionID})
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}

func (a *API) handleMySecurityEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	filter, err := parseEventFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter.UserID = id.User.ID

	events, err := a.security.Events(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toEventResponses(events)})
}

func (a *API) handleChangeRole(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	actor, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role := auth.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if role != auth.RoleAdmin && role != auth.RoleUser {
		writeError(w, r, http.StatusBadRequest, "role must be ADMIN or USER")
		return
	}

	updated, err := a.auth.ChangeRole(r.Context(), userID, role)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "role.changed", map[string]any{
		"actor":  actor.User.ID,
		"target": userID,
		"role":   string(role),
	})
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func toEventResponses(events []*security.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	return out
}
