// Package identity integrates external OAuth identity providers.
package identity

import "context"

// Profile is the identity returned by a provider after a successful code
// exchange. Treated as untrusted remote input by callers.
type Profile struct {
	Email     string
	Name      string
	AvatarURL string
}

// Provider exchanges an authorization code for a user profile. A non-success
// response at any step is a hard failure of the login attempt.
type Provider interface {
	Exchange(ctx context.Context, code string) (Profile, error)
}
