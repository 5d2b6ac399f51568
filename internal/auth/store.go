package auth

import "context"

// Store describes the persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Sessions(ctx context.Context) SessionStore
}

// UserStore manages employee accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	// UpdateProfile refreshes display name and avatar (OAuth re-login).
	UpdateProfile(ctx context.Context, id, name, avatarURL string) error
	UpdateRole(ctx context.Context, id string, role Role) error
	CountByRole(ctx context.Context, role Role) (int, error)
}

// SessionStore manages session lifecycle. Sessions are terminated by clearing
// the active flag, never deleted.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	// FindActiveByToken only matches sessions with the active flag set; an
	// inactive match returns ErrNotFound. This is the revocation
	// enforcement point for refresh tokens.
	FindActiveByToken(ctx context.Context, refreshToken string) (*Session, error)
	// Touch bumps last_active to now.
	Touch(ctx context.Context, id string) error
	// Revoke clears the active flag. Idempotent.
	Revoke(ctx context.Context, id string) error
	ListActiveForUser(ctx context.Context, userID string) ([]*Session, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}
