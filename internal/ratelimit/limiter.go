package ratelimit

import "context"

// RateLimiter bounds the outbound carrier call rate.
type RateLimiter interface {
	Allow(ctx context.Context) (bool, error)
	Wait(ctx context.Context) error
}
