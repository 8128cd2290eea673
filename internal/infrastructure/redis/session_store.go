package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/memory"
)

var errNotConfigured = errors.New("redis not configured")

// SessionStore keeps opaque session references with per-account generations:
// - sess:<ref> -> "<accountID>:<ver>" with TTL
// - sessver:<accountID> -> <ver> (integer, no TTL)
// InvalidateAll increments sessver, so every older reference stops resolving.
type SessionStore struct {
	rdb *goredis.Client

	refPrefix string
	verPrefix string
}

func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{
		rdb:       unwrap(c),
		refPrefix: "sess:",
		verPrefix: "sessver:",
	}
}

func (s *SessionStore) Create(ctx context.Context, accountID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", domain.ErrMissingField("account_id")
	}
	if s.rdb == nil {
		return "", errNotConfigured
	}

	ver, err := s.generation(ctx, accountID)
	if err != nil {
		return "", err
	}

	ref, err := memory.NewSessionRef()
	if err != nil {
		return "", err
	}

	val := fmt.Sprintf("%s:%d", accountID, ver)
	if err := s.rdb.Set(ctx, s.refPrefix+ref, val, ttl).Err(); err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}
	return ref, nil
}

func (s *SessionStore) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", domain.ErrSessionInvalid()
	}
	if s.rdb == nil {
		return "", errNotConfigured
	}

	val, err := s.rdb.Get(ctx, s.refPrefix+ref).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", domain.ErrSessionInvalid()
		}
		return "", fmt.Errorf("session resolve: %w", err)
	}

	accountID, ver, err := parseSessionValue(val)
	if err != nil {
		return "", domain.ErrSessionInvalid()
	}

	cur, err := s.generation(ctx, accountID)
	if err != nil {
		return "", err
	}
	if ver != cur {
		return "", domain.ErrSessionInvalid()
	}
	return accountID, nil
}

// Invalidate is idempotent.
func (s *SessionStore) Invalidate(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if s.rdb == nil {
		return errNotConfigured
	}
	if err := s.rdb.Del(ctx, s.refPrefix+ref).Err(); err != nil {
		return fmt.Errorf("session invalidate: %w", err)
	}
	return nil
}

func (s *SessionStore) InvalidateAll(ctx context.Context, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return domain.ErrMissingField("account_id")
	}
	if s.rdb == nil {
		return errNotConfigured
	}
	if err := s.rdb.Incr(ctx, s.verPrefix+accountID).Err(); err != nil {
		return fmt.Errorf("session invalidate all: %w", err)
	}
	return nil
}

// generation returns the current sessver, 0 when unset.
func (s *SessionStore) generation(ctx context.Context, accountID string) (int64, error) {
	v, err := s.rdb.Get(ctx, s.verPrefix+accountID).Int64()
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, goredis.Nil):
		return 0, nil
	default:
		return 0, fmt.Errorf("session generation: %w", err)
	}
}

func parseSessionValue(v string) (accountID string, ver int64, err error) {
	i := strings.LastIndexByte(v, ':')
	if i <= 0 || i == len(v)-1 {
		return "", 0, fmt.Errorf("bad session value")
	}
	accountID = strings.TrimSpace(v[:i])
	if accountID == "" {
		return "", 0, fmt.Errorf("empty account id")
	}
	ver, err = strconv.ParseInt(v[i+1:], 10, 64)
	if err != nil {
		return "", 0, err
	}
	return accountID, ver, nil
}
