package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "kadro"
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour

	refreshTokenType = "refresh"
)

// AccessClaims is the signed claim set carried by access tokens. SessionID is
// present for tokens issued by a login or refresh and absent otherwise.
// TokenType is never set on issued access tokens; it exists so a refresh
// token's type marker survives decoding and can be rejected.
type AccessClaims struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the signed claim set carried by refresh tokens. TokenType
// distinguishes them from access tokens on decode.
type RefreshClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer creates and validates signed, time-bounded tokens. The signing
// secret is injected at construction; there is no ambient secret state.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		if strings.TrimSpace(name) != "" {
			i.issuer = strings.TrimSpace(name)
		}
	}
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.refreshTTL = ttl
		}
	}
}

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer signing with HS256 over the given secret.
func NewIssuer(secret []byte, opts ...IssuerOption) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	i := &Issuer{
		secret:     secret,
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueAccess signs an access token for the user. Pass an empty sessionID for
// flows without a session context.
func (i *Issuer) IssueAccess(email, name, sessionID string) (string, time.Time, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", time.Time{}, errors.New("email is required")
	}
	now := i.now().UTC()
	exp := now.Add(i.accessTTL)
	claims := AccessClaims{
		Name:      name,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueRefresh signs a refresh token for the user.
func (i *Issuer) IssueRefresh(email string) (string, time.Time, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", time.Time{}, errors.New("email is required")
	}
	now := i.now().UTC()
	exp := now.Add(i.refreshTTL)
	claims := RefreshClaims{
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ValidateAccess verifies the token signature and required claims. Refresh
// tokens are rejected here: their claim shape carries a token_type marker.
func (i *Issuer) ValidateAccess(token string) (*AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{}, i.keyFunc,
		jwt.WithTimeFunc(i.now),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != "" {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefresh returns the subject email of a valid refresh token. A bad
// signature, expiry or type-marker mismatch yields ok=false, never an error:
// callers treat the miss as "cannot refresh".
func (i *Issuer) ValidateRefresh(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	parsed, err := jwt.ParseWithClaims(token, &RefreshClaims{}, i.keyFunc,
		jwt.WithTimeFunc(i.now),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", false
	}
	claims, ok := parsed.Claims.(*RefreshClaims)
	if !ok || !parsed.Valid {
		return "", false
	}
	if claims.TokenType != refreshTokenType {
		return "", false
	}
	email := strings.TrimSpace(claims.Subject)
	if email == "" {
		return "", false
	}
	return email, true
}

func (i *Issuer) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, ErrInvalidToken
	}
	return i.secret, nil
}
