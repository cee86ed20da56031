package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/viesti/telia-gateway/internal/domain"
)

const tokenKey = "telia:token:current"

// RedisTokenCache shares the current carrier token across worker processes.
// The key TTL tracks the token's fixed lifetime so expired tokens vanish on
// their own.
type RedisTokenCache struct {
	client *goredis.Client
	now    func() time.Time
}

func NewRedisTokenCache(client *goredis.Client) (*RedisTokenCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisTokenCache{client: client, now: time.Now}, nil
}

func (c *RedisTokenCache) Get(ctx context.Context) (*domain.Token, error) {
	raw, err := c.client.Get(ctx, tokenKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached token: %w", err)
	}

	var token domain.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		// Unreadable cache entries are treated as a miss, not an error.
		return nil, nil
	}

	return &token, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, token domain.Token) error {
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return fmt.Errorf("refusing to cache an already expired token")
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := c.client.Set(ctx, tokenKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, tokenKey).Err(); err != nil {
		return fmt.Errorf("failed to clear cached token: %w", err)
	}
	return nil
}
