package account

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// Session is the credential handed back by SignIn.
type Session struct {
	Ref         string
	AccessToken string
	TokenType   string // "Bearer"
	ExpiresIn   int64  // access token lifetime, seconds
	ExpiresAt   time.Time
}

type SignInResult struct {
	Profile domain.Profile
	Session Session
}

// SignIn authenticates by email and password.
// Not-found and wrong-password are reported as distinct kinds.
// A deactivated account fails before the password is checked.
func (s *Service) SignIn(ctx context.Context, email, password string) (_ SignInResult, err error) {
	defer s.observe("sign_in", time.Now(), &err)

	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return SignInResult{}, err
	}
	if password == "" {
		return SignInResult{}, domain.ErrMissingField("password")
	}

	acct, err := s.findAccount(ctx, email)
	if err != nil {
		s.auditSignInFailure(email, err)
		return SignInResult{}, err
	}

	unlock, err := s.lock(ctx, accountLockKey(acct.ID))
	if err != nil {
		return SignInResult{}, err
	}
	defer unlock()

	prof, found, err := s.loadProfile(ctx, acct.ID)
	if err != nil {
		return SignInResult{}, err
	}
	if !found {
		// A sign-up may have been rolled back while we waited for the lock.
		if acct, err = s.confirmAccount(ctx, email, acct.ID); err != nil {
			s.auditSignInFailure(email, err)
			return SignInResult{}, err
		}
	}
	if found && !prof.IsActive {
		err := domain.ErrAccountDeactivated()
		s.auditSignInFailure(email, err)
		return SignInResult{}, err
	}

	ok, err := s.verify(ctx, password, acct.PasswordHash)
	if err != nil {
		return SignInResult{}, err
	}
	if !ok {
		err := domain.ErrInvalidCredential()
		s.auditSignInFailure(email, err)
		return SignInResult{}, err
	}

	now := s.clock.Now()
	if found {
		prof, err = s.touchLastLogin(ctx, prof, now)
	} else {
		prof, err = s.repairProfile(ctx, acct, now)
	}
	if err != nil {
		return SignInResult{}, err
	}

	sess, err := s.openSession(ctx, prof)
	if err != nil {
		return SignInResult{}, err
	}

	s.audit("account.sign_in", map[string]string{
		"account_id": acct.ID,
		"email":      acct.Email,
		"result":     "success",
	})
	return SignInResult{Profile: prof, Session: sess}, nil
}

// confirmAccount re-reads the account under its lock. An account recreated
// under a different id is not the one that was locked.
func (s *Service) confirmAccount(ctx context.Context, email, lockedID string) (domain.Account, error) {
	acct, err := s.findAccount(ctx, email)
	if err != nil {
		return domain.Account{}, err
	}
	if acct.ID != lockedID {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return acct, nil
}

func (s *Service) touchLastLogin(ctx context.Context, prof domain.Profile, now time.Time) (domain.Profile, error) {
	// lastLoginAt never moves backwards, even if the clock does.
	if now.Before(prof.LastLoginAt) {
		now = prof.LastLoginAt
	}
	patch := domain.ProfilePatch{LastLoginAt: &now}
	if err := s.patchProfile(ctx, prof.AccountID, patch, prof.Version); err != nil {
		return domain.Profile{}, err
	}
	return patch.Apply(prof), nil
}

// repairProfile recreates a missing profile with defaults. This happens when a
// sign-up compensation failed or the profile document was lost.
func (s *Service) repairProfile(ctx context.Context, acct domain.Account, now time.Time) (domain.Profile, error) {
	prof := domain.NewProfile(acct, "", now)
	if !acct.CreatedAt.IsZero() {
		prof.CreatedAt = acct.CreatedAt
	}
	if err := s.putProfile(ctx, prof); err != nil {
		return domain.Profile{}, err
	}

	s.metrics.ProfileRepaired()
	s.logger(ctx).Warn().
		Str("account_id", acct.ID).
		Msg("profile missing at sign-in; recreated with defaults")
	s.audit("account.profile_repaired", map[string]string{
		"account_id": acct.ID,
		"email":      acct.Email,
		"result":     "success",
	})
	return prof, nil
}

func (s *Service) openSession(ctx context.Context, prof domain.Profile) (Session, error) {
	c, cancel := s.callCtx(ctx)
	defer cancel()

	ref, err := s.sessions.Create(c, prof.AccountID, s.sessionTTL)
	if err != nil {
		return Session{}, boundary("sessions", err)
	}

	token, err := s.tokens.IssueAccessToken(prof.AccountID, prof.Role, ref, s.accessTokenTTL)
	if err != nil {
		_ = s.sessions.Invalidate(c, ref)
		return Session{}, domain.ErrStorageUnavailable("token_issuer", err)
	}

	return Session{
		Ref:         ref,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTokenTTL.Seconds()),
		ExpiresAt:   s.clock.Now().Add(s.sessionTTL),
	}, nil
}

func (s *Service) auditSignInFailure(email string, err error) {
	s.audit("account.sign_in", map[string]string{
		"email":      email,
		"result":     "error",
		"error_code": errorCode(err),
	})
}

func errorCode(err error) string {
	if de, ok := domain.As(err); ok {
		return de.Code
	}
	return "non_domain_error"
}
