package memory

import (
	"context"
	"sync"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type ProfileStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{byID: make(map[string]domain.Profile)}
}

func (s *ProfileStore) Get(ctx context.Context, accountID string) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[accountID]
	if !ok {
		return domain.Profile{}, domain.ErrAccountNotFound()
	}
	return p, nil
}

func (s *ProfileStore) Put(ctx context.Context, p domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.AccountID == "" {
		return domain.ErrMissingField("account_id")
	}
	if p.Role == "" {
		p.Role = domain.RoleUser
	}
	if !p.Role.Valid() {
		return domain.ErrUnknownRole(p.Role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Version == 0 {
		p.Version = 1
	}
	s.byID[p.AccountID] = p
	return nil
}

func (s *ProfileStore) Patch(ctx context.Context, accountID string, patch domain.ProfilePatch, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[accountID]
	if !ok {
		return domain.ErrAccountNotFound()
	}
	if p.Version != expectedVersion {
		return domain.ErrVersionConflict("profile")
	}
	s.byID[accountID] = patch.Apply(p)
	return nil
}

// SetActive flips the activation flag. Deactivation is an administrative
// action and is not exposed through the account service.
func (s *ProfileStore) SetActive(ctx context.Context, accountID string, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[accountID]
	if !ok {
		return domain.ErrAccountNotFound()
	}
	p.IsActive = active
	p.Version++
	s.byID[accountID] = p
	return nil
}
