package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/clock"
)

type Clock interface {
	Now() time.Time
}

func orSystem(c Clock) Clock {
	if c == nil {
		return clock.System{}
	}
	return c
}

type CredentialStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.Account
	byEmail map[string]string // email -> accountID
	clock   Clock
}

func NewCredentialStore(c Clock) *CredentialStore {
	return &CredentialStore{
		byID:    make(map[string]domain.Account),
		byEmail: make(map[string]string),
		clock:   orSystem(c),
	}
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return s.byID[id], nil
}

func (s *CredentialStore) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		return domain.Account{}, domain.ErrMissingField("id")
	}
	if _, exists := s.byEmail[a.Email]; exists {
		return domain.Account{}, domain.ErrDuplicateAccount()
	}
	if a.Version == 0 {
		a.Version = 1
	}

	s.byID[a.ID] = a
	s.byEmail[a.Email] = a.ID
	return a, nil
}

func (s *CredentialStore) UpdateHash(ctx context.Context, accountID, hash string, expectedVersion int64) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[accountID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	if a.Version != expectedVersion {
		return domain.Account{}, domain.ErrVersionConflict("account")
	}

	a.PasswordHash = hash
	a.Version++
	a.UpdatedAt = s.clock.Now()
	s.byID[accountID] = a
	return a, nil
}

// Delete is idempotent.
func (s *CredentialStore) Delete(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[accountID]
	if !ok {
		return nil
	}
	delete(s.byID, accountID)
	delete(s.byEmail, a.Email)
	return nil
}

func (s *CredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
