package auth

import (
	"testing"
	"time"
)

func testIssuer(t *testing.T, opts ...IssuerOption) *Issuer {
	t.Helper()
	issuer, err := NewIssuer([]byte("test-secret"), opts...)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return issuer
}

func TestIssueAndValidateAccess(t *testing.T) {
	issuer := testIssuer(t)

	token, exp, err := issuer.IssueAccess("A@X.com", "Ayesha", "01SESSION")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := issuer.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.Subject != "a@x.com" {
		t.Fatalf("email not normalised: %s", claims.Subject)
	}
	if claims.Name != "Ayesha" {
		t.Fatalf("unexpected name: %s", claims.Name)
	}
	if claims.SessionID != "01SESSION" {
		t.Fatalf("unexpected session id: %s", claims.SessionID)
	}
}

func TestIssueAccessWithoutSession(t *testing.T) {
	issuer := testIssuer(t)

	token, _, err := issuer.IssueAccess("a@x.com", "Ayesha", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := issuer.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.SessionID != "" {
		t.Fatalf("expected empty session id, got %s", claims.SessionID)
	}
}

func TestValidateAccessRejectsExpired(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	issuer := testIssuer(t, WithIssuerClock(func() time.Time { return past }))

	token, _, err := issuer.IssueAccess("a@x.com", "Ayesha", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	live := testIssuer(t)
	if _, err := live.ValidateAccess(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateAccessRejectsRefreshToken(t *testing.T) {
	issuer := testIssuer(t)

	refresh, _, err := issuer.IssueRefresh("a@x.com")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := issuer.ValidateAccess(refresh); err != ErrInvalidToken {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
}

func TestValidateRefreshRoundTrip(t *testing.T) {
	issuer := testIssuer(t)

	token, exp, err := issuer.IssueRefresh("A@X.com")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if time.Until(exp) < 6*24*time.Hour {
		t.Fatalf("unexpected refresh expiry: %v", exp)
	}

	email, ok := issuer.ValidateRefresh(token)
	if !ok {
		t.Fatal("expected valid refresh token")
	}
	if email != "a@x.com" {
		t.Fatalf("unexpected subject: %s", email)
	}
}

func TestValidateRefreshMissesAreNotErrors(t *testing.T) {
	issuer := testIssuer(t)

	// Access token fails the type-marker check.
	access, _, err := issuer.IssueAccess("a@x.com", "Ayesha", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, ok := issuer.ValidateRefresh(access); ok {
		t.Fatal("access token accepted as refresh token")
	}

	// Foreign signature.
	other := testIssuer(t)
	other.secret = []byte("another-secret")
	foreign, _, err := other.IssueRefresh("a@x.com")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, ok := issuer.ValidateRefresh(foreign); ok {
		t.Fatal("foreign signature accepted")
	}

	// Garbage input.
	if _, ok := issuer.ValidateRefresh("not-a-token"); ok {
		t.Fatal("garbage accepted")
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
