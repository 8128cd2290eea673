package account

import (
	"context"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func (s *Service) GetProfile(ctx context.Context, accountID string) (_ domain.Profile, err error) {
	defer s.observe("get_profile", time.Now(), &err)

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.Profile{}, domain.ErrMissingField("account_id")
	}

	prof, found, err := s.loadProfile(ctx, accountID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !found {
		return domain.Profile{}, domain.ErrAccountNotFound()
	}
	return prof, nil
}

// UpdateProfile applies caller-writable fields (displayName only) and returns
// the profile as read back after the write.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, fields map[string]any) (_ domain.Profile, err error) {
	defer s.observe("update_profile", time.Now(), &err)

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.Profile{}, domain.ErrMissingField("account_id")
	}
	patch, err := domain.ParseProfilePatch(fields)
	if err != nil {
		return domain.Profile{}, err
	}

	unlock, err := s.lock(ctx, accountLockKey(accountID))
	if err != nil {
		return domain.Profile{}, err
	}
	defer unlock()

	current, found, err := s.loadProfile(ctx, accountID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !found {
		return domain.Profile{}, domain.ErrAccountNotFound()
	}

	now := s.clock.Now()
	patch.UpdatedAt = &now
	if err := s.patchProfile(ctx, accountID, patch, current.Version); err != nil {
		return domain.Profile{}, err
	}

	updated, found, err := s.loadProfile(ctx, accountID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !found {
		return domain.Profile{}, domain.ErrAccountNotFound()
	}

	s.audit("account.profile_updated", map[string]string{
		"account_id": accountID,
		"result":     "success",
	})
	return updated, nil
}
