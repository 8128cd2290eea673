package account

import (
	"context"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// SignOut invalidates a single session. An empty reference is a no-op.
func (s *Service) SignOut(ctx context.Context, sessionRef string) (err error) {
	defer s.observe("sign_out", time.Now(), &err)

	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return nil
	}

	c, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.sessions.Invalidate(c, sessionRef); err != nil {
		return boundary("sessions", err)
	}
	return nil
}

// SignOutEverywhere invalidates every session of an account.
func (s *Service) SignOutEverywhere(ctx context.Context, accountID string) (err error) {
	defer s.observe("sign_out_everywhere", time.Now(), &err)

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.ErrMissingField("account_id")
	}
	if err := s.invalidateAll(ctx, accountID); err != nil {
		return err
	}
	s.audit("account.sessions_revoked", map[string]string{
		"account_id": accountID,
		"result":     "success",
	})
	return nil
}

// ResolveSession returns the profile behind a live session.
func (s *Service) ResolveSession(ctx context.Context, sessionRef string) (_ domain.Profile, err error) {
	defer s.observe("resolve_session", time.Now(), &err)

	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return domain.Profile{}, domain.ErrSessionInvalid()
	}

	c, cancel := s.callCtx(ctx)
	accountID, err := s.sessions.Resolve(c, sessionRef)
	cancel()
	if err != nil {
		return domain.Profile{}, boundary("sessions", err)
	}

	prof, found, err := s.loadProfile(ctx, accountID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !found {
		return domain.Profile{}, domain.ErrAccountNotFound()
	}
	if !prof.IsActive {
		return domain.Profile{}, domain.ErrAccountDeactivated()
	}
	return prof, nil
}

func (s *Service) invalidateAll(ctx context.Context, accountID string) error {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	return boundary("sessions", s.sessions.InvalidateAll(c, accountID))
}
