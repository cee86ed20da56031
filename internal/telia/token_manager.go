package telia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/viesti/telia-gateway/internal/cache"
	"github.com/viesti/telia-gateway/internal/domain"
	"github.com/viesti/telia-gateway/internal/observability"
	"go.uber.org/zap"
)

const (
	tokenPath  = "/autho4api/v1/token"
	revokePath = "/autho4api/v1/revoke"

	// defaultSettleDelay gives the carrier infrastructure time to propagate a
	// freshly issued token before it is used for a send. Cache hits skip it.
	defaultSettleDelay = time.Second
)

// Credentials is the carrier account credential pair. The carrier issues one
// token per pair, not per tenant.
type Credentials struct {
	Username string
	Password string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenManager acquires, caches, and revokes the carrier bearer token.
type TokenManager struct {
	transport   *Transport
	credentials Credentials
	tokens      cache.TokenCache
	settleDelay time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewTokenManager(
	transport *Transport,
	credentials Credentials,
	tokens cache.TokenCache,
	settleDelay time.Duration,
	logger *zap.Logger,
) (*TokenManager, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if strings.TrimSpace(credentials.Username) == "" || strings.TrimSpace(credentials.Password) == "" {
		return nil, fmt.Errorf("carrier credentials are required")
	}
	if tokens == nil {
		tokens = cache.NewMemoryTokenCache()
	}
	if settleDelay <= 0 {
		settleDelay = defaultSettleDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TokenManager{
		transport:   transport,
		credentials: credentials,
		tokens:      tokens,
		settleDelay: settleDelay,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

func (m *TokenManager) SetMetrics(metrics *observability.Metrics) {
	if m == nil {
		return
	}
	m.metrics = metrics
}

// Fetch returns a valid bearer token, from cache when possible. A cached but
// expired token is revoked at the carrier before a new one is requested. A
// fresh token is held back for the settling delay before being handed out.
func (m *TokenManager) Fetch(ctx context.Context) (*domain.Token, error) {
	cached, err := m.tokens.Get(ctx)
	if err != nil {
		m.logger.Warn("token cache read failed", zap.Error(err))
	}
	if cached != nil {
		if cached.Valid(m.now()) {
			m.metrics.IncTokenFetch("cache")
			return cached, nil
		}

		// The carrier invalidates old tokens when a new one is issued, but
		// revoking the stale one explicitly keeps the account tidy.
		if _, err := m.Revoke(ctx, cached.AccessToken); err != nil {
			m.logger.Warn("failed to revoke stale token before refresh", zap.Error(err))
		}
	}

	resp, err := m.transport.PostForm(ctx, tokenPath, map[string]string{
		"grant_type": "client_credentials",
	}, m.credentials.Username, m.credentials.Password)
	if err != nil {
		m.metrics.IncTokenFetch("error")
		return nil, &ServerError{Cause: fmt.Errorf("token request failed: %w", err)}
	}

	if resp.StatusCode() != http.StatusOK {
		m.metrics.IncTokenFetch("error")
		m.logger.Error("carrier rejected token request",
			zap.Int("status", resp.StatusCode()),
		)
		return nil, &AuthenticationError{StatusCode: resp.StatusCode()}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil || strings.TrimSpace(parsed.AccessToken) == "" {
		m.metrics.IncTokenFetch("error")
		return nil, &ServerError{
			StatusCode: resp.StatusCode(),
			Cause:      fmt.Errorf("malformed token response: %v", err),
		}
	}

	token := domain.NewToken(parsed.AccessToken, m.issuedAt(resp.Header().Get("Date")))
	if err := m.tokens.Set(ctx, token); err != nil {
		// The send can still proceed with the in-hand token.
		m.logger.Warn("failed to cache token", zap.Error(err))
	}
	m.metrics.IncTokenFetch("network")

	if err := m.sleep(ctx, m.settleDelay); err != nil {
		return nil, err
	}

	return &token, nil
}

// Revoke invalidates a token at the carrier and drops it from the cache. It
// is safe to call with an already expired token; the revocation is still
// attempted. The returned bool reports whether the carrier acknowledged.
func (m *TokenManager) Revoke(ctx context.Context, accessToken string) (bool, error) {
	if strings.TrimSpace(accessToken) == "" {
		return false, fmt.Errorf("access token is required")
	}

	resp, err := m.transport.PostForm(ctx, revokePath, map[string]string{
		"token": accessToken,
	}, m.credentials.Username, m.credentials.Password)
	if err != nil {
		m.metrics.IncTokenRevocation(false)
		return false, fmt.Errorf("revoke request failed: %w", err)
	}

	if cached, cacheErr := m.tokens.Get(ctx); cacheErr == nil && cached != nil && cached.AccessToken == accessToken {
		if clearErr := m.tokens.Clear(ctx); clearErr != nil {
			m.logger.Warn("failed to clear cached token after revoke", zap.Error(clearErr))
		}
	}

	acknowledged := resp.StatusCode() == http.StatusOK
	m.metrics.IncTokenRevocation(acknowledged)
	if !acknowledged {
		m.logger.Warn("carrier did not acknowledge token revocation",
			zap.Int("status", resp.StatusCode()),
		)
	}

	return acknowledged, nil
}

// RevokeCached revokes whatever token is currently cached. Returns false
// without error when nothing is cached.
func (m *TokenManager) RevokeCached(ctx context.Context) (bool, error) {
	cached, err := m.tokens.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read cached token: %w", err)
	}
	if cached == nil {
		return false, nil
	}

	return m.Revoke(ctx, cached.AccessToken)
}

func (m *TokenManager) issuedAt(dateHeader string) time.Time {
	if strings.TrimSpace(dateHeader) != "" {
		if parsed, err := http.ParseTime(dateHeader); err == nil {
			return parsed
		}
	}
	return m.now()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
