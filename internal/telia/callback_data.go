package telia

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/viesti/telia-gateway/internal/domain"
)

const callbackDataAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CallbackDataStore is the subset of the delivery ledger needed for the
// collision check.
type CallbackDataStore interface {
	ExistsByCallbackData(ctx context.Context, callbackData string) (bool, error)
}

// CallbackDataGenerator mints the per-delivery correlation secret. The secret
// is the webhook's only authentication factor, so it is drawn from a
// cryptographic source, and although a collision is astronomically unlikely
// at 32 alphanumeric characters, uniqueness is verified rather than assumed.
type CallbackDataGenerator struct {
	deliveries CallbackDataStore
	randomData func() (string, error)
}

func NewCallbackDataGenerator(deliveries CallbackDataStore) (*CallbackDataGenerator, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery store is required")
	}

	return &CallbackDataGenerator{
		deliveries: deliveries,
		randomData: randomCallbackData,
	}, nil
}

// Generate returns a fresh correlation secret that no existing delivery
// holds, regenerating on collision.
func (g *CallbackDataGenerator) Generate(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate, err := g.randomData()
		if err != nil {
			return "", fmt.Errorf("failed to generate callback data: %w", err)
		}

		exists, err := g.deliveries.ExistsByCallbackData(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check callback data uniqueness: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
}

func randomCallbackData() (string, error) {
	alphabetSize := big.NewInt(int64(len(callbackDataAlphabet)))

	data := make([]byte, domain.CallbackDataLength)
	for i := range data {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		data[i] = callbackDataAlphabet[idx.Int64()]
	}

	return string(data), nil
}
