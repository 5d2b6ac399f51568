package auth

import "errors"

var (
	// ErrNotFound indicates a referenced user or session no longer exists.
	ErrNotFound = errors.New("auth: not found")

	// ErrAlreadyExists indicates a unique constraint violation (email taken).
	ErrAlreadyExists = errors.New("auth: already exists")

	// ErrInvalidCredentials covers unknown email, missing password hash and
	// wrong password identically so responses cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrRateLimited indicates the source IP is locked out after repeated
	// failed logins.
	ErrRateLimited = errors.New("auth: rate limited")

	// ErrInvalidToken indicates a token failed signature, expiry or
	// type-marker validation.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrSessionRevoked indicates a structurally valid refresh token whose
	// session is inactive. Surfaced to clients identically to
	// ErrInvalidToken; kept distinct internally for logging.
	ErrSessionRevoked = errors.New("auth: session revoked")

	// ErrUpstreamIdentity indicates the OAuth provider exchange failed or
	// timed out.
	ErrUpstreamIdentity = errors.New("auth: identity provider failure")

	// ErrLastAdmin rejects demoting the only remaining administrator.
	ErrLastAdmin = errors.New("auth: cannot demote the last administrator")

	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("auth: forbidden")
)
