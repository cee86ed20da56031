package telia

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/viesti/telia-gateway/internal/domain"
)

type fakeCallbackDataStore struct {
	existsFn func(ctx context.Context, callbackData string) (bool, error)
}

func (f *fakeCallbackDataStore) ExistsByCallbackData(ctx context.Context, callbackData string) (bool, error) {
	return f.existsFn(ctx, callbackData)
}

func TestCallbackDataGeneratorProducesValidSecret(t *testing.T) {
	t.Parallel()

	store := &fakeCallbackDataStore{
		existsFn: func(ctx context.Context, callbackData string) (bool, error) {
			return false, nil
		},
	}
	gen, err := NewCallbackDataGenerator(store)
	if err != nil {
		t.Fatalf("NewCallbackDataGenerator() error = %v", err)
	}

	secret, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(secret) != domain.CallbackDataLength {
		t.Fatalf("len(secret) = %d, want %d", len(secret), domain.CallbackDataLength)
	}
	for _, r := range secret {
		if !strings.ContainsRune(callbackDataAlphabet, r) {
			t.Fatalf("secret contains %q outside the alphabet", r)
		}
	}
}

func TestCallbackDataGeneratorRetriesOnCollision(t *testing.T) {
	t.Parallel()

	calls := 0
	store := &fakeCallbackDataStore{
		existsFn: func(ctx context.Context, callbackData string) (bool, error) {
			calls++
			return calls == 1, nil
		},
	}
	gen, err := NewCallbackDataGenerator(store)
	if err != nil {
		t.Fatalf("NewCallbackDataGenerator() error = %v", err)
	}

	candidates := []string{"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"}
	gen.randomData = func() (string, error) {
		return candidates[calls], nil
	}

	secret, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if secret != candidates[1] {
		t.Fatalf("secret = %q, want the regenerated candidate", secret)
	}
	if calls != 2 {
		t.Fatalf("uniqueness checks = %d, want 2", calls)
	}
}

func TestCallbackDataGeneratorStoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("db down")
	store := &fakeCallbackDataStore{
		existsFn: func(ctx context.Context, callbackData string) (bool, error) {
			return false, storeErr
		},
	}
	gen, err := NewCallbackDataGenerator(store)
	if err != nil {
		t.Fatalf("NewCallbackDataGenerator() error = %v", err)
	}

	if _, err := gen.Generate(context.Background()); !errors.Is(err, storeErr) {
		t.Fatalf("Generate() error = %v, want wrapped store error", err)
	}
}

func TestCallbackDataGeneratorHonorsContext(t *testing.T) {
	t.Parallel()

	store := &fakeCallbackDataStore{
		existsFn: func(ctx context.Context, callbackData string) (bool, error) {
			return true, nil
		},
	}
	gen, err := NewCallbackDataGenerator(store)
	if err != nil {
		t.Fatalf("NewCallbackDataGenerator() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := gen.Generate(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
}
