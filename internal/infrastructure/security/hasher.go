package security

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownHashFormat is returned when no configured hasher recognises a stored hash.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

type Hasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) (bool, error)
	// Recognizes reports whether hash was produced by this scheme.
	Recognizes(hash string) bool
}

// NewHasher builds the configured scheme. The other scheme is kept for
// verifying hashes written before a switch.
func NewHasher(kind string, bcryptCost int, argon ArgonParams) (*MultiHasher, error) {
	a := NewArgon2Hasher(argon)
	b := NewBcryptHasher(bcryptCost)
	switch kind {
	case "", "argon2id":
		return &MultiHasher{primary: a, legacy: []Hasher{b}}, nil
	case "bcrypt":
		return &MultiHasher{primary: b, legacy: []Hasher{a}}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", kind)
	}
}

// MultiHasher hashes with one scheme and verifies with whichever scheme wrote the hash.
type MultiHasher struct {
	primary Hasher
	legacy  []Hasher
}

func (m *MultiHasher) Hash(ctx context.Context, password string) (string, error) {
	return m.primary.Hash(ctx, password)
}

func (m *MultiHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if m.primary.Recognizes(hash) {
		return m.primary.Verify(ctx, password, hash)
	}
	for _, h := range m.legacy {
		if h.Recognizes(hash) {
			return h.Verify(ctx, password, hash)
		}
	}
	return false, ErrUnknownHashFormat
}

// runCtx runs CPU-bound work off the caller's goroutine so a deadline can
// abandon it. The work itself is not interrupted.
func runCtx[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
