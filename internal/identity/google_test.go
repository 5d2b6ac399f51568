package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newGoogleAgainst(t *testing.T, tokenStatus int, profile map[string]string) *Google {
	t.Helper()

	userInfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer upstream-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(profile)
	}))
	t.Cleanup(userInfo.Close)

	token := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "upstream-token"})
	}))
	t.Cleanup(token.Close)

	g, err := NewGoogle(GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/callback",
	}, WithEndpoints(token.URL, userInfo.URL))
	require.NoError(t, err)
	return g
}

func TestGoogleExchange(t *testing.T) {
	g := newGoogleAgainst(t, http.StatusOK, map[string]string{
		"email":   "Person@Example.com",
		"name":    "Person Example",
		"picture": "https://lh3.example/avatar.png",
	})

	profile, err := g.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, "person@example.com", profile.Email)
	require.Equal(t, "Person Example", profile.Name)
	require.Equal(t, "https://lh3.example/avatar.png", profile.AvatarURL)
}

func TestGoogleExchangeRejectedCode(t *testing.T) {
	g := newGoogleAgainst(t, http.StatusBadRequest, nil)

	_, err := g.Exchange(context.Background(), "bad-code")
	require.Error(t, err)
}

func TestGoogleExchangeMissingEmail(t *testing.T) {
	g := newGoogleAgainst(t, http.StatusOK, map[string]string{"name": "No Email"})

	_, err := g.Exchange(context.Background(), "auth-code")
	require.Error(t, err)
}

func TestGoogleExchangeEmptyCode(t *testing.T) {
	g := newGoogleAgainst(t, http.StatusOK, nil)

	_, err := g.Exchange(context.Background(), "  ")
	require.Error(t, err)
}
