package security

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const DefaultBcryptCost = 12

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Recognizes(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	return runCtx(ctx, func() (string, error) {
		b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.ErrInvalidField("password", "must be at most 72 bytes")
		}
		if err != nil {
			return "", domain.ErrHashFailed(err)
		}
		return string(b), nil
	})
}

func (h *BcryptHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	return runCtx(ctx, func() (bool, error) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
			return false, nil
		default:
			return false, err
		}
	})
}
