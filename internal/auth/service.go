package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kadro.org/internal/identity"
	"kadro.org/internal/obs"
	"kadro.org/internal/security"
)

// ClientInfo describes the device making an authentication request.
type ClientInfo struct {
	IP       string
	Location string
	Device   string
}

// Service composes credential verification, token issuance, session lifecycle
// and anomaly detection into the login, refresh and logout use cases.
type Service struct {
	store  Store
	events *security.Service
	issuer *Issuer
	idp    identity.Provider
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithIdentityProvider wires the external OAuth provider. Without one, OAuth
// logins fail with ErrUpstreamIdentity.
func WithIdentityProvider(p identity.Provider) ServiceOption {
	return func(s *Service) { s.idp = p }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth orchestrator.
func NewService(store Store, events *security.Service, issuer *Issuer, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		events: events,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a local account. Duplicate emails fail with
// ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, email, name, password, avatarURL string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || name == "" || password == "" {
		return nil, errors.New("auth: email, name and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        email,
		Name:         name,
		AvatarURL:    avatarURL,
		Provider:     ProviderLocal,
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := s.store.Users(ctx).Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// AuthenticateLocal runs the password login state machine: lockout check,
// credential check, anomaly check, session creation, token issuance.
// Unknown email, missing password hash and wrong password all fail with the
// same ErrInvalidCredentials so responses cannot enumerate accounts.
func (s *Service) AuthenticateLocal(ctx context.Context, email, password string, client ClientInfo) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	locked, err := s.events.IsIPLockedOut(ctx, client.IP)
	if err != nil {
		return nil, err
	}
	if locked {
		var userID *string
		if u, lookupErr := s.store.Users(ctx).FindByEmail(ctx, email); lookupErr == nil {
			userID = &u.ID
		}
		if _, logErr := s.events.LogEvent(ctx, security.EventAccountLocked, client.IP, userID, map[string]string{
			"reason":         "Too many failed attempts",
			"targeted_email": email,
			"location":       client.Location,
		}); logErr != nil {
			return nil, logErr
		}
		obs.ObserveLockout()
		obs.ObserveLogin("local", "rate_limited")
		return nil, ErrRateLimited
	}

	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" || VerifyPassword(user.PasswordHash, password) != nil {
		var userID *string
		if user != nil {
			userID = &user.ID
		}
		if _, logErr := s.events.LogEvent(ctx, security.EventFailedLogin, client.IP, userID, map[string]string{
			"attempted_email": email,
			"location":        client.Location,
		}); logErr != nil {
			return nil, logErr
		}
		obs.ObserveLogin("local", "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	result, err := s.finalizeLogin(ctx, user, client, ProviderLocal)
	if err != nil {
		obs.ObserveLogin("local", "error")
		return nil, err
	}
	obs.ObserveLogin("local", "success")
	return result, nil
}

// AuthenticateOAuth exchanges the provider code for an identity, upserts the
// local user record and finalizes the login. The lockout and failed-login
// checks of the local path deliberately do not apply here: trust in repeated
// attempts is delegated to the provider. Keep the asymmetry explicit.
func (s *Service) AuthenticateOAuth(ctx context.Context, code string, client ClientInfo) (*LoginResult, error) {
	if s.idp == nil {
		return nil, ErrUpstreamIdentity
	}
	profile, err := s.idp.Exchange(ctx, code)
	if err != nil {
		obs.Logger().Warn("oauth exchange failed", zap.Error(err))
		obs.ObserveLogin("google", "upstream_failure")
		return nil, fmt.Errorf("%w: %s", ErrUpstreamIdentity, err)
	}

	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, profile.Email)
	switch {
	case errors.Is(err, ErrNotFound):
		user = &User{
			Email:     profile.Email,
			Name:      profile.Name,
			AvatarURL: profile.AvatarURL,
			Provider:  ProviderGoogle,
			Role:      RoleUser,
		}
		if err := users.Create(ctx, user); err != nil {
			return nil, err
		}
		obs.Logger().Info("created user from oauth profile", zap.String("user_id", user.ID))
	case err != nil:
		return nil, err
	default:
		// Returning user: refresh profile fields from the provider.
		if err := users.UpdateProfile(ctx, user.ID, profile.Name, profile.AvatarURL); err != nil {
			return nil, err
		}
		user.Name = profile.Name
		user.AvatarURL = profile.AvatarURL
	}

	result, err := s.finalizeLogin(ctx, user, client, ProviderGoogle)
	if err != nil {
		obs.ObserveLogin("google", "error")
		return nil, err
	}
	obs.ObserveLogin("google", "success")
	return result, nil
}

// finalizeLogin is shared by both login paths: anomaly check, ACTIVE_SESSION
// event, session row, token pair bound to the new session.
func (s *Service) finalizeLogin(ctx context.Context, user *User, client ClientInfo, provider Provider) (*LoginResult, error) {
	if err := s.events.CheckSuspiciousActivity(ctx, user.ID, client.IP); err != nil {
		return nil, err
	}
	if _, err := s.events.LogEvent(ctx, security.EventActiveSession, client.IP, &user.ID, map[string]string{
		"provider": string(provider),
		"location": client.Location,
	}); err != nil {
		return nil, err
	}

	refreshToken, _, err := s.issuer.IssueRefresh(user.Email)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		UserID:       user.ID,
		RefreshToken: refreshToken,
		DeviceInfo:   client.Device,
		IPAddress:    client.IP,
		Location:     client.Location,
	}
	if err := s.store.Sessions(ctx).Create(ctx, sess); err != nil {
		return nil, err
	}

	accessToken, _, err := s.issuer.IssueAccess(user.Email, user.Name, sess.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The session
// record is the source of truth for revocation: a cryptographically valid
// token whose session is inactive fails with ErrSessionRevoked. Refresh
// tokens are not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", ErrInvalidToken
	}
	sess, err := s.store.Sessions(ctx).FindActiveByToken(ctx, refreshToken)
	if errors.Is(err, ErrNotFound) {
		return "", ErrSessionRevoked
	}
	if err != nil {
		return "", err
	}

	email, ok := s.issuer.ValidateRefresh(refreshToken)
	if !ok {
		return "", ErrInvalidToken
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if err := s.store.Sessions(ctx).Touch(ctx, sess.ID); err != nil {
		return "", err
	}
	if _, err := s.events.LogEvent(ctx, security.EventRefreshUsed, sess.IPAddress, &user.ID, map[string]string{
		"session_id": sess.ID,
	}); err != nil {
		return "", err
	}

	access, _, err := s.issuer.IssueAccess(user.Email, user.Name, sess.ID)
	if err != nil {
		return "", err
	}
	return access, nil
}

// Logout revokes the session matching the refresh token. Absent or already
// revoked tokens are a silent no-op, never an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	sess, err := s.store.Sessions(ctx).FindActiveByToken(ctx, refreshToken)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.Sessions(ctx).Revoke(ctx, sess.ID)
}

// VerifyAccess validates an access token and resolves the caller. When the
// token carries a session id, the session-active flag is enforced; tokens
// without one are accepted until expiry. That staleness window for
// session-free tokens is a documented tradeoff, not an oversight.
func (s *Service) VerifyAccess(ctx context.Context, token string) (Identity, error) {
	claims, err := s.issuer.ValidateAccess(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	if claims.SessionID != "" {
		sess, err := s.store.Sessions(ctx).Find(ctx, claims.SessionID)
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrSessionRevoked
		}
		if err != nil {
			return Identity{}, err
		}
		if !sess.IsActive {
			return Identity{}, ErrSessionRevoked
		}
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, err
	}
	return Identity{User: user, Claims: claims}, nil
}

// CurrentUser loads the user for an email claim.
func (s *Service) CurrentUser(ctx context.Context, email string) (*User, error) {
	return s.store.Users(ctx).FindByEmail(ctx, email)
}

// ListUsers returns all accounts (admin surface).
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users(ctx).List(ctx)
}

// ChangeRole updates a user's role. Demoting the only remaining
// administrator fails with ErrLastAdmin. Every role change revokes all of the
// user's sessions, forcing re-authentication with fresh claims.
func (s *Service) ChangeRole(ctx context.Context, userID string, role Role) (*User, error) {
	if role != RoleAdmin && role != RoleUser {
		return nil, fmt.Errorf("%w: unknown role %q", ErrNotFound, role)
	}
	users := s.store.Users(ctx)
	target, err := users.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role == RoleAdmin && role != RoleAdmin {
		admins, err := users.CountByRole(ctx, RoleAdmin)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, ErrLastAdmin
		}
	}
	if err := users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	target.Role = role

	if err := s.store.Sessions(ctx).RevokeAllForUser(ctx, userID); err != nil {
		return nil, err
	}
	obs.Logger().Info("role changed, sessions revoked",
		zap.String("user_id", userID), zap.String("role", string(role)))
	return target, nil
}

// SessionsForUser lists the user's active sessions, most recently used first.
func (s *Service) SessionsForUser(ctx context.Context, userID string) ([]*Session, error) {
	return s.store.Sessions(ctx).ListActiveForUser(ctx, userID)
}

// RevokeUserSession revokes one of the user's own sessions. A session owned
// by someone else is reported as missing, not forbidden.
func (s *Service) RevokeUserSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.store.Sessions(ctx).Find(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return ErrNotFound
	}
	return s.store.Sessions(ctx).Revoke(ctx, sess.ID)
}
