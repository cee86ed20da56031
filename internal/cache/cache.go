package cache

import (
	"context"

	"github.com/viesti/telia-gateway/internal/domain"
)

// TokenCache stores the single current carrier token. Implementations must
// overwrite on Set: the carrier invalidates all earlier tokens whenever a new
// one is issued, so there is never more than one token worth keeping.
type TokenCache interface {
	// Get returns the cached token, or nil when nothing is cached. Entries
	// are not filtered by expiry; callers check validity themselves so stale
	// tokens can still be revoked at the carrier.
	Get(ctx context.Context) (*domain.Token, error)
	Set(ctx context.Context, token domain.Token) error
	Clear(ctx context.Context) error
}
