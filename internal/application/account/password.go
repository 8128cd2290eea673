package account

import (
	"context"
	"fmt"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const passwordChangeScope = "password_change"

// ChangePassword re-authenticates with the current password, stores the new
// hash and signs the account out everywhere. Errors carry user-facing messages.
func (s *Service) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) (err error) {
	defer s.observe("change_password", time.Now(), &err)
	return s.friendlyPasswordError(s.changePassword(ctx, email, currentPassword, newPassword))
}

func (s *Service) changePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	if err := domain.ValidatePassword(newPassword, s.minPasswordLength); err != nil {
		return err
	}

	limitKey := passwordChangeLimitKey(email)
	if err := s.checkLimit(ctx, limitKey); err != nil {
		return err
	}

	acct, err := s.findAccount(ctx, email)
	if err != nil {
		return err
	}

	unlock, err := s.lock(ctx, accountLockKey(acct.ID))
	if err != nil {
		return err
	}
	defer unlock()

	// re-read under the lock; a concurrent change may have landed meanwhile
	acct, err = s.findAccount(ctx, email)
	if err != nil {
		return err
	}

	ok, err := s.verify(ctx, currentPassword, acct.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		s.recordFailure(ctx, limitKey)
		s.audit("account.password_change", map[string]string{
			"account_id": acct.ID,
			"result":     "error",
			"error_code": "invalid_credentials",
		})
		return domain.ErrInvalidCredential()
	}

	hash, err := s.hash(ctx, newPassword)
	if err != nil {
		return err
	}

	// Sessions go first: sign-in shares this lock, so nothing can be issued
	// between the invalidation and the hash update.
	if err := s.invalidateAll(ctx, acct.ID); err != nil {
		return err
	}

	c, cancel := s.callCtx(ctx)
	updated, err := s.creds.UpdateHash(c, acct.ID, hash, acct.Version)
	cancel()
	if err != nil {
		return boundary("credentials", err)
	}

	s.resetLimit(ctx, limitKey)
	s.publishPasswordChanged(ctx, updated)
	s.audit("account.password_change", map[string]string{
		"account_id": acct.ID,
		"result":     "success",
	})
	return nil
}

func (s *Service) friendlyPasswordError(err error) error {
	de, ok := domain.As(err)
	if !ok {
		return err
	}
	switch de.Kind {
	case domain.KindInvalidCredential:
		return domain.WithMessage(de, "Current password is incorrect")
	case domain.KindWeakCredential:
		return domain.WithMessage(de, fmt.Sprintf("New password is too weak. Please use at least %d characters", s.minPasswordLength))
	case domain.KindAccountNotFound:
		return domain.WithMessage(de, "User not found")
	case domain.KindRateLimited:
		return domain.WithMessage(de, "Too many failed attempts. Please try again later")
	}
	return err
}

func passwordChangeLimitKey(email string) string { return "pwchange:" + email }

// The limiter fails open: an unreachable limiter is logged, not surfaced.

func (s *Service) checkLimit(ctx context.Context, key string) error {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	d, err := s.limiter.Check(c, key)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Str("key", key).Msg("attempt limiter unavailable; allowing")
		return nil
	}
	if !d.Allowed {
		return domain.ErrRateLimited(passwordChangeScope, d.RetryAfter)
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, key string) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	if _, err := s.limiter.RecordFailure(c, key); err != nil {
		s.logger(ctx).Warn().Err(err).Str("key", key).Msg("attempt limiter record failed")
	}
}

func (s *Service) resetLimit(ctx context.Context, key string) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.limiter.Reset(c, key); err != nil {
		s.logger(ctx).Warn().Err(err).Str("key", key).Msg("attempt limiter reset failed")
	}
}

func (s *Service) publishPasswordChanged(ctx context.Context, a domain.Account) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	err := s.pub.PublishPasswordChanged(c, PasswordChangedEvent{
		AccountID: a.ID,
		Email:     a.Email,
		ChangedAt: a.UpdatedAt,
	})
	if err != nil {
		s.logger(ctx).Warn().Err(err).Str("account_id", a.ID).Msg("publish account.password_changed failed")
	}
}
