package domain

import (
	"strings"
	"time"
)

// TokenLifetime is the local validity window of a carrier bearer token. The
// carrier reports a longer expires_in, but the operator recommends using one
// token for at most nine minutes at a time, so the advertised value is
// ignored in favor of this constant.
const TokenLifetime = 540 * time.Second

// Token is a carrier-issued bearer credential. Only one token is valid at a
// time for a credential pair: issuing a new one invalidates all previous
// tokens at the carrier side, so stale tokens are overwritten, never kept.
type Token struct {
	AccessToken string    `json:"accessToken"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// NewToken builds a token with the fixed local lifetime applied.
func NewToken(accessToken string, issuedAt time.Time) Token {
	return Token{
		AccessToken: accessToken,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(TokenLifetime),
	}
}

func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

func (t Token) Valid(now time.Time) bool {
	return strings.TrimSpace(t.AccessToken) != "" && !t.Expired(now)
}

func (t Token) AuthorizationHeader() string {
	return "Bearer " + t.AccessToken
}
