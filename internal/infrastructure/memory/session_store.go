package memory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const sessionRefBytes = 32

// sessionEntry holds the owner and expiry of a session reference
type sessionEntry struct {
	accountID string
	expiresAt time.Time
}

type SessionStore struct {
	mu sync.RWMutex
	// ref -> sessionEntry
	byRef map[string]sessionEntry
	// accountID -> set(ref)
	byAccount map[string]map[string]struct{}
	clock     Clock
}

func NewSessionStore(c Clock) *SessionStore {
	return &SessionStore{
		byRef:     make(map[string]sessionEntry),
		byAccount: make(map[string]map[string]struct{}),
		clock:     orSystem(c),
	}
}

func (s *SessionStore) Create(ctx context.Context, accountID string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref, err := NewSessionRef()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byRef[ref] = sessionEntry{
		accountID: accountID,
		expiresAt: s.clock.Now().Add(ttl),
	}
	if s.byAccount[accountID] == nil {
		s.byAccount[accountID] = make(map[string]struct{})
	}
	s.byAccount[accountID][ref] = struct{}{}
	return ref, nil
}

func (s *SessionStore) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	entry, ok := s.byRef[ref]
	s.mu.RUnlock()

	if !ok {
		return "", domain.ErrSessionInvalid()
	}
	if !s.clock.Now().Before(entry.expiresAt) {
		_ = s.Invalidate(ctx, ref)
		return "", domain.ErrSessionInvalid()
	}
	return entry.accountID, nil
}

func (s *SessionStore) Invalidate(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byRef[ref]
	if !ok {
		return nil
	}
	delete(s.byRef, ref)
	if set := s.byAccount[entry.accountID]; set != nil {
		delete(set, ref)
		if len(set) == 0 {
			delete(s.byAccount, entry.accountID)
		}
	}
	return nil
}

func (s *SessionStore) InvalidateAll(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref := range s.byAccount[accountID] {
		delete(s.byRef, ref)
	}
	delete(s.byAccount, accountID)
	return nil
}

// NewSessionRef returns a random URL-safe reference.
func NewSessionRef() (string, error) {
	b := make([]byte, sessionRefBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session ref: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
