package telia

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/viesti/telia-gateway/internal/cache"
	"github.com/viesti/telia-gateway/internal/domain"
)

type carrierAuthStub struct {
	mu          sync.Mutex
	tokenCalls  int
	revokeCalls int
	revoked     []string

	tokenStatus int
	tokenBody   string
	dateHeader  string
}

func newCarrierAuthStub() *carrierAuthStub {
	return &carrierAuthStub{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"token-1","token_type":"bearer","expires_in":3600}`,
	}
}

func (s *carrierAuthStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch r.URL.Path {
		case tokenPath:
			s.tokenCalls++
			if user, pass, ok := r.BasicAuth(); !ok || user != "user" || pass != "secret" {
				t.Errorf("token request basic auth = %q/%q", user, pass)
			}
			if err := r.ParseForm(); err != nil {
				t.Errorf("token request form parse error = %v", err)
			}
			if got := r.PostFormValue("grant_type"); got != "client_credentials" {
				t.Errorf("grant_type = %q", got)
			}
			if s.dateHeader != "" {
				w.Header().Set("Date", s.dateHeader)
			}
			w.WriteHeader(s.tokenStatus)
			_, _ = w.Write([]byte(s.tokenBody))
		case revokePath:
			s.revokeCalls++
			if err := r.ParseForm(); err != nil {
				t.Errorf("revoke request form parse error = %v", err)
			}
			s.revoked = append(s.revoked, r.PostFormValue("token"))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestTokenManager(t *testing.T, baseURL string, tokens cache.TokenCache) *TokenManager {
	t.Helper()

	transport, err := NewTransport(baseURL, false)
	if err != nil {
		t.Fatalf("NewTransport() error = %v", err)
	}

	m, err := NewTokenManager(transport, Credentials{Username: "user", Password: "secret"}, tokens, time.Second, nil)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	m.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return m
}

func TestTokenManagerFetchFromNetwork(t *testing.T) {
	t.Parallel()

	stub := newCarrierAuthStub()
	stub.dateHeader = "Mon, 02 Jan 2006 15:04:05 GMT"
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	m := newTestTokenManager(t, server.URL, cache.NewMemoryTokenCache())

	token, err := m.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if token.AccessToken != "token-1" {
		t.Fatalf("AccessToken = %q", token.AccessToken)
	}

	// Local lifetime comes from the Date header plus the fixed window, not
	// from the carrier's expires_in.
	wantIssued, _ := http.ParseTime(stub.dateHeader)
	if !token.IssuedAt.Equal(wantIssued) {
		t.Fatalf("IssuedAt = %v, want %v", token.IssuedAt, wantIssued)
	}
	if got := token.ExpiresAt.Sub(token.IssuedAt); got != domain.TokenLifetime {
		t.Fatalf("lifetime = %v, want %v", got, domain.TokenLifetime)
	}
	if stub.tokenCalls != 1 {
		t.Fatalf("token calls = %d, want 1", stub.tokenCalls)
	}
}

func TestTokenManagerFetchCacheHitSkipsNetwork(t *testing.T) {
	t.Parallel()

	stub := newCarrierAuthStub()
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	tokens := cache.NewMemoryTokenCache()
	m := newTestTokenManager(t, server.URL, tokens)

	cached := domain.NewToken("cached-token", time.Now())
	if err := tokens.Set(context.Background(), cached); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	token, err := m.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if token.AccessToken != "cached-token" {
		t.Fatalf("AccessToken = %q, want cached-token", token.AccessToken)
	}
	if stub.tokenCalls != 0 || stub.revokeCalls != 0 {
		t.Fatalf("carrier calls = %d/%d, want none", stub.tokenCalls, stub.revokeCalls)
	}
}

func TestTokenManagerFetchRevokesStaleTokenFirst(t *testing.T) {
	t.Parallel()

	stub := newCarrierAuthStub()
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	tokens := cache.NewMemoryTokenCache()
	m := newTestTokenManager(t, server.URL, tokens)

	stale := domain.NewToken("stale-token", time.Now().Add(-time.Hour))
	if err := tokens.Set(context.Background(), stale); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	token, err := m.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if token.AccessToken != "token-1" {
		t.Fatalf("AccessToken = %q, want a fresh token", token.AccessToken)
	}
	if stub.revokeCalls != 1 || len(stub.revoked) != 1 || stub.revoked[0] != "stale-token" {
		t.Fatalf("revoked = %v, want exactly [stale-token]", stub.revoked)
	}
	if stub.tokenCalls != 1 {
		t.Fatalf("token calls = %d, want 1", stub.tokenCalls)
	}
}

func TestTokenManagerFetchAuthenticationFailure(t *testing.T) {
	t.Parallel()

	stub := newCarrierAuthStub()
	stub.tokenStatus = http.StatusUnauthorized
	stub.tokenBody = `{"error":"invalid_client"}`
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	m := newTestTokenManager(t, server.URL, cache.NewMemoryTokenCache())

	_, err := m.Fetch(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Fetch() error = %v, want AuthenticationError", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d, want 401", authErr.StatusCode)
	}
}

func TestTokenManagerFetchMalformedTokenResponse(t *testing.T) {
	t.Parallel()

	stub := newCarrierAuthStub()
	stub.tokenBody = `{"token_type":"bearer"}`
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	m := newTestTokenManager(t, server.URL, cache.NewMemoryTokenCache())

	_, err := m.Fetch(context.Background())
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Fetch() error = %v, want ServerError", err)
	}
}

func TestTokenManagerRevokeClearsCache(t *testing.T) {
	t.Parallel()

	stub := newCarrierAuthStub()
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	tokens := cache.NewMemoryTokenCache()
	m := newTestTokenManager(t, server.URL, tokens)

	token := domain.NewToken("token-1", time.Now())
	if err := tokens.Set(context.Background(), token); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	acknowledged, err := m.Revoke(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if !acknowledged {
		t.Fatal("Revoke() acknowledged = false, want true")
	}

	cached, err := tokens.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cached != nil {
		t.Fatalf("cached token = %+v, want cleared", cached)
	}
}

func TestTokenManagerRevokeCachedWithEmptyCache(t *testing.T) {
	t.Parallel()

	stub := newCarrierAuthStub()
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	m := newTestTokenManager(t, server.URL, cache.NewMemoryTokenCache())

	acknowledged, err := m.RevokeCached(context.Background())
	if err != nil {
		t.Fatalf("RevokeCached() error = %v", err)
	}
	if acknowledged {
		t.Fatal("RevokeCached() acknowledged = true, want false with empty cache")
	}
	if stub.revokeCalls != 0 {
		t.Fatalf("revoke calls = %d, want 0", stub.revokeCalls)
	}
}
