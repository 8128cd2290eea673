package account

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const compensationTimeout = 5 * time.Second

type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
}

// SignUp creates an Account and its Profile. The duplicate check happens
// before any write, and a failed Profile write deletes the Account again.
// Both writes happen under the new account's lock.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (_ domain.Profile, err error) {
	defer s.observe("sign_up", time.Now(), &err)

	email := domain.NormalizeEmail(in.Email)
	if err := domain.ValidateEmail(email); err != nil {
		return domain.Profile{}, err
	}
	if err := domain.ValidatePassword(in.Password, s.minPasswordLength); err != nil {
		return domain.Profile{}, err
	}
	displayName, err := domain.NormalizeDisplayName(in.DisplayName)
	if err != nil {
		return domain.Profile{}, err
	}

	unlock, err := s.lock(ctx, emailLockKey(email))
	if err != nil {
		return domain.Profile{}, err
	}
	defer unlock()

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return domain.Profile{}, err
	}

	hash, err := s.hash(ctx, in.Password)
	if err != nil {
		return domain.Profile{}, err
	}

	// A concurrent SignIn that finds the new account must wait until the
	// profile is written or the account is rolled back.
	id := uuid.NewString()
	unlockAccount, err := s.lock(ctx, accountLockKey(id))
	if err != nil {
		return domain.Profile{}, err
	}
	defer unlockAccount()

	now := s.clock.Now()
	acct, err := s.createAccount(ctx, domain.Account{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.Profile{}, err
	}

	profile := domain.NewProfile(acct, displayName, now)
	if err := s.putProfile(ctx, profile); err != nil {
		s.compensateSignUp(ctx, acct, err)
		return domain.Profile{}, err
	}

	s.publishAccountCreated(ctx, acct)
	s.audit("account.sign_up", map[string]string{
		"account_id": acct.ID,
		"email":      acct.Email,
		"result":     "success",
	})
	return profile, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.findAccount(ctx, email)
	switch {
	case err == nil:
		return domain.ErrDuplicateAccount()
	case domain.IsKind(err, domain.KindAccountNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) createAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	created, err := s.creds.Create(c, a)
	if err != nil {
		return domain.Account{}, boundary("credentials", err)
	}
	return created, nil
}

// compensateSignUp removes an Account whose Profile could not be written.
// It runs detached from the caller's cancellation: the caller may already have given up.
func (s *Service) compensateSignUp(ctx context.Context, a domain.Account, cause error) {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	s.metrics.CompensatedSignUp()
	if err := s.creds.Delete(c, a.ID); err != nil {
		s.logger(ctx).Error().
			Err(err).
			AnErr("cause", cause).
			Str("account_id", a.ID).
			Msg("sign-up compensation failed; account left without profile until next sign-in")
		return
	}
	s.logger(ctx).Warn().
		AnErr("cause", cause).
		Str("account_id", a.ID).
		Msg("profile write failed; account removed")
}

func (s *Service) publishAccountCreated(ctx context.Context, a domain.Account) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	err := s.pub.PublishAccountCreated(c, AccountCreatedEvent{
		AccountID: a.ID,
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
	})
	if err != nil {
		s.logger(ctx).Warn().Err(err).Str("account_id", a.ID).Msg("publish account.created failed")
	}
}
