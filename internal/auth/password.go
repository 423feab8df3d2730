// Package auth provides the credential-hashing and token-issuing
// primitives used by the auth service.  Both are stateless apart from
// their startup configuration.
package auth

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
)

// Hasher wraps bcrypt with a configurable cost and a cap on concurrent
// hashing operations.  bcrypt is intentionally CPU-expensive; without the
// cap a burst of login attempts could saturate every core and starve the
// rest of the request handlers.
type Hasher struct {
	cost int
	sem  chan struct{}
}

// NewHasher returns a Hasher with the given bcrypt cost and concurrency
// limit.  A cost outside the bcrypt range falls back to the default, and a
// non-positive limit falls back to GOMAXPROCS.
func NewHasher(cost, maxConcurrent int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if maxConcurrent < 1 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, sem: make(chan struct{}, maxConcurrent)}
}

// acquire reserves a hashing slot, honoring context cancellation while
// waiting.
func (h *Hasher) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hash returns the bcrypt hash of the plaintext.  The output embeds the
// salt and cost, so every call produces a different hash for the same
// input.  bcrypt rejects inputs longer than 72 bytes.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer func() { <-h.sem }()

	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether the plaintext matches the stored hash.  The
// comparison is bcrypt's own, which does not leak the mismatch position.
// Any malformed-hash or cancellation condition reads as a mismatch.
func (h *Hasher) Verify(ctx context.Context, plain, hash string) bool {
	if err := h.acquire(ctx); err != nil {
		return false
	}
	defer func() { <-h.sem }()

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
