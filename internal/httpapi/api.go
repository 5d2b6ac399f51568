package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"kadro.org/internal/audit"
	"kadro.org/internal/auth"
	"kadro.org/internal/location"
	"kadro.org/internal/obs"
	"kadro.org/internal/security"
	"kadro.org/internal/stream"
)

// ReadyProbe reports whether downstream dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the auth and security services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	auth     *auth.Service
	security *security.Service
	stream   *stream.Stream
	resolver location.Resolver
}

// Option configures the API.
type Option func(*API)

// WithStream wires the live security event stream for the SSE endpoint.
func WithStream(st *stream.Stream) Option {
	return func(a *API) { a.stream = st }
}

// WithLocationResolver wires the IP geolocation lookup used to annotate
// sessions and events.
func WithLocationResolver(r location.Resolver) Option {
	return func(a *API) {
		if r != nil {
			a.resolver = r
		}
	}
}

// New wires the routes. The auth and security services are required; the
// stream and resolver are optional.
func New(authSvc *auth.Service, secSvc *security.Service, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		auth:       authSvc,
		security:   secSvc,
		resolver:   location.Static("Unknown Location"),
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// authentication
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/google", a.handleGoogleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// users and sessions
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// security surface
	a.mux.HandleFunc("/v1/admin/security/events", a.handleSecurityEvents)
	a.mux.HandleFunc("/v1/admin/security/active-users", a.handleActiveUsers)
	a.mux.HandleFunc("/v1/security/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "kadro-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "kadro-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// clientInfo assembles the device fingerprint for auth flows. The location
// lookup is best-effort.
func (a *API) clientInfo(r *http.Request) auth.ClientInfo {
	ip := clientIP(r)
	return auth.ClientInfo{
		IP:       ip,
		Location: a.resolver.Resolve(r.Context(), ip),
		Device:   strings.TrimSpace(r.UserAgent()),
	}
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

// --- response shaping ---

// userResponse is the public projection of a user record. The password hash
// never leaves the service.
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Provider  string    `json:"provider"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Provider:  string(u.Provider),
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// sessionResponse is the public projection of a session. The refresh token
// stays server-side.
type sessionResponse struct {
	ID         string    `json:"id"`
	DeviceInfo string    `json:"device_info,omitempty"`
	IPAddress  string    `json:"ip_address"`
	Location   string    `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Current    bool      `json:"current"`
}

func toSessionResponse(s *auth.Session, currentID string) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		DeviceInfo: s.DeviceInfo,
		IPAddress:  s.IPAddress,
		Location:   s.Location,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive,
		Current:    s.ID == currentID,
	}
}

type eventResponse struct {
	ID        string            `json:"id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	IPAddress string            `json:"ip_address"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func toEventResponse(e *security.Event) eventResponse {
	out := eventResponse{
		ID:        e.ID,
		EventType: string(e.Kind),
		IPAddress: e.IPAddress,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
	if e.UserID != nil {
		out.UserID = *e.UserID
	}
	return out
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleAuthError maps domain errors onto HTTP responses. Invalid tokens and
// revoked sessions are indistinguishable to callers.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "too many failed attempts, try again later")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrSessionRevoked):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrUpstreamIdentity):
		writeError(w, r, http.StatusBadGateway, "identity provider unavailable")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrLastAdmin):
		writeError(w, r, http.StatusBadRequest, "cannot demote the last administrator")
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusBadRequest, "email is already registered")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
