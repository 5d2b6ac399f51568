// Package location resolves client IP addresses into human-readable location
// strings for session records and security event metadata.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kadro.org/internal/obs"
)

const (
	defaultEndpoint = "http://ip-api.com/json"
	defaultTimeout  = 5 * time.Second

	// Unknown is the fallback when the lookup fails. Lookups are
	// best-effort: a failure never blocks a login.
	Unknown = "Unknown Location"
)

// Resolver maps an IP to a display location.
type Resolver interface {
	Resolve(ctx context.Context, ip string) string
}

// IPAPI resolves locations through the ip-api.com JSON endpoint.
type IPAPI struct {
	client   *http.Client
	endpoint string
}

// Option configures the resolver.
type Option func(*IPAPI)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *IPAPI) {
		if c != nil {
			r.client = c
		}
	}
}

// WithEndpoint overrides the lookup endpoint (useful for tests).
func WithEndpoint(url string) Option {
	return func(r *IPAPI) {
		if url != "" {
			r.endpoint = url
		}
	}
}

// NewIPAPI constructs a resolver with a bounded HTTP client.
func NewIPAPI(opts ...Option) *IPAPI {
	r := &IPAPI{
		client:   &http.Client{Timeout: defaultTimeout},
		endpoint: defaultEndpoint,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns "City, Country" for the IP, or Unknown on any failure.
// Loopback addresses short-circuit without a network call.
func (r *IPAPI) Resolve(ctx context.Context, ip string) string {
	switch ip {
	case "127.0.0.1", "::1", "localhost", "0.0.0.0", "":
		return "Localhost"
	}

	url := fmt.Sprintf("%s/%s?fields=city,country,status", r.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Unknown
	}
	res, err := r.client.Do(req)
	if err != nil {
		obs.Logger().Debug("location lookup failed", zap.String("ip", ip), zap.Error(err))
		return Unknown
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Unknown
	}

	var body struct {
		Status  string `json:"status"`
		City    string `json:"city"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Unknown
	}
	if body.Status != "success" || body.City == "" || body.Country == "" {
		return Unknown
	}
	return body.City + ", " + body.Country
}

// Static always returns the same location. Used in tests and when outbound
// lookups are disabled.
type Static string

func (s Static) Resolve(ctx context.Context, ip string) string { return string(s) }
