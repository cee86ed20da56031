package domain

import (
	"testing"
	"time"
)

func TestNewTokenAppliesFixedLifetime(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := NewToken("abcdef1234567890", issuedAt)

	if token.ExpiresAt != issuedAt.Add(TokenLifetime) {
		t.Fatalf("ExpiresAt = %s, want issuedAt + %s", token.ExpiresAt, TokenLifetime)
	}
	if got := token.AuthorizationHeader(); got != "Bearer abcdef1234567890" {
		t.Fatalf("AuthorizationHeader() = %q", got)
	}
}

func TestTokenValidity(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := NewToken("abcdef1234567890", issuedAt)

	if !token.Valid(issuedAt.Add(time.Minute)) {
		t.Fatal("token should be valid one minute after issue")
	}
	if token.Valid(issuedAt.Add(TokenLifetime)) {
		t.Fatal("token should be expired exactly at the lifetime boundary")
	}
	if !token.Expired(issuedAt.Add(TokenLifetime + time.Second)) {
		t.Fatal("token should report expired after the lifetime")
	}

	empty := Token{IssuedAt: issuedAt, ExpiresAt: issuedAt.Add(TokenLifetime)}
	if empty.Valid(issuedAt) {
		t.Fatal("token without an access token must not be valid")
	}
}
