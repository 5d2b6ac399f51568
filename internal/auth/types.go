package auth

import "time"

// Role labels a user's authorization level.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Provider tags how an account authenticates.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// User is an employee account. Email is the identity key. PasswordHash is
// empty for pure-OAuth accounts.
type User struct {
	ID           string
	Email        string
	Name         string
	AvatarURL    string
	Provider     Provider
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is one authenticated device/browser instance. Sessions are revoked
// by clearing IsActive, never deleted.
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	DeviceInfo   string
	IPAddress    string
	Location     string
	IsActive     bool
	CreatedAt    time.Time
	LastActive   time.Time
}

// LoginResult bundles the credentials issued by a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *User
}
