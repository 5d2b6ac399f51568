package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	defaultTimeout = 10 * time.Second
)

// GoogleConfig holds the OAuth client registration for Google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Google implements Provider against Google's OAuth2 endpoints. All calls are
// bounded by the HTTP client timeout; a timeout surfaces as a provider
// failure, never as "no such user".
type Google struct {
	cfg         GoogleConfig
	client      *http.Client
	tokenURL    string
	userInfoURL string
}

// GoogleOption configures the Google provider.
type GoogleOption func(*Google)

// WithHTTPClient overrides the HTTP client (useful for tests).
func WithHTTPClient(c *http.Client) GoogleOption {
	return func(g *Google) {
		if c != nil {
			g.client = c
		}
	}
}

// WithEndpoints overrides the token and userinfo URLs (useful for tests).
func WithEndpoints(tokenURL, userInfoURL string) GoogleOption {
	return func(g *Google) {
		if tokenURL != "" {
			g.tokenURL = tokenURL
		}
		if userInfoURL != "" {
			g.userInfoURL = userInfoURL
		}
	}
}

// NewGoogle constructs a Google identity provider.
func NewGoogle(cfg GoogleConfig, opts ...GoogleOption) (*Google, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("identity: google client id and secret are required")
	}
	g := &Google{
		cfg:         cfg,
		client:      &http.Client{Timeout: defaultTimeout},
		tokenURL:    googleTokenURL,
		userInfoURL: googleUserInfoURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Exchange trades the authorization code for an access token, then fetches
// the user profile.
func (g *Google) Exchange(ctx context.Context, code string) (Profile, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Profile{}, errors.New("identity: authorization code is required")
	}

	form := url.Values{
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {g.cfg.RedirectURI},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := g.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("identity: token exchange: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("identity: token exchange status %d", res.StatusCode)
	}

	var tokenBody struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&tokenBody); err != nil {
		return Profile{}, fmt.Errorf("identity: decode token response: %w", err)
	}
	if tokenBody.AccessToken == "" {
		return Profile{}, errors.New("identity: empty access token")
	}

	return g.fetchProfile(ctx, tokenBody.AccessToken)
}

func (g *Google) fetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := g.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("identity: userinfo fetch: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("identity: userinfo status %d", res.StatusCode)
	}

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return Profile{}, fmt.Errorf("identity: decode userinfo: %w", err)
	}
	if strings.TrimSpace(info.Email) == "" {
		return Profile{}, errors.New("identity: userinfo missing email")
	}
	return Profile{
		Email:     strings.TrimSpace(strings.ToLower(info.Email)),
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}
