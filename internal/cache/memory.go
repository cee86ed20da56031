package cache

import (
	"context"
	"sync"

	"github.com/viesti/telia-gateway/internal/domain"
)

// MemoryTokenCache is a process-local token cache for deployments without a
// shared cache backend. Expired entries are returned as-is; the token manager
// is responsible for revoking and replacing them.
type MemoryTokenCache struct {
	mu    sync.Mutex
	token *domain.Token
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{}
}

func (c *MemoryTokenCache) Get(_ context.Context) (*domain.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		return nil, nil
	}

	token := *c.token
	return &token, nil
}

func (c *MemoryTokenCache) Set(_ context.Context, token domain.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = &token
	return nil
}

func (c *MemoryTokenCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = nil
	return nil
}
