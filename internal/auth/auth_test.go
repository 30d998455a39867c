package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	tok, err := m.GenerateAccessToken("U1", "anna@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "U1" || claims.Email != "anna@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.VerifyRefreshToken(tok); err == nil {
		t.Fatalf("access token must not verify as refresh token")
	}
}

func TestRefreshTokenHashIsStable(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, jti, exp, err := m.GenerateRefreshToken("U1", "anna@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if jti == "" || !exp.After(time.Now()) {
		t.Fatalf("bad jti/expiry: %q %v", jti, exp)
	}

	if m.HashRefreshToken(raw) != m.HashRefreshToken(raw) {
		t.Fatalf("hash must be deterministic")
	}

	other := NewManager("other-secret", time.Minute, time.Hour)
	if _, err := other.VerifyRefreshToken(raw); err == nil {
		t.Fatalf("token signed with another secret must not verify")
	}
}

func TestLoginTokenParse(t *testing.T) {
	tok, err := NewLoginToken()
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	parsed, err := ParseLoginToken(tok.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != tok {
		t.Fatalf("got %+v want %+v", parsed, tok)
	}

	for _, bad := range []string{"", "no-dot", "not-a-uuid.abc", tok.Selector + "."} {
		if _, err := ParseLoginToken(bad); !errors.Is(err, ErrLinkInvalid) {
			t.Fatalf("%q: expected ErrLinkInvalid, got %v", bad, err)
		}
	}

	if strings.Contains(tok.Verifier, "=") {
		t.Fatalf("verifier must be url safe without padding: %q", tok.Verifier)
	}
}

func TestTokenKindsDoNotCross(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, _, _, err := m.GenerateRefreshToken("U1", "anna@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.VerifyAccessToken(raw); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, err := m.GenerateAccessToken("U1", "anna@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewManager("test-secret", time.Minute, time.Hour).VerifyAccessToken(tok); err == nil {
		t.Fatalf("expired token must not verify")
	}
}
