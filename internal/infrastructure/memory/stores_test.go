package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/clock"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCredentialStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(t0)
	s := NewCredentialStore(clk)

	_, err := s.FindByEmail(ctx, "a@x.com")
	assert.True(t, domain.IsKind(err, domain.KindAccountNotFound))

	a, err := s.Create(ctx, domain.Account{ID: "u1", Email: "a@x.com", PasswordHash: "h1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Version)

	_, err = s.Create(ctx, domain.Account{ID: "u2", Email: "a@x.com"})
	assert.True(t, domain.IsKind(err, domain.KindDuplicateAccount))

	_, err = s.Create(ctx, domain.Account{Email: "b@x.com"})
	assert.True(t, domain.IsKind(err, domain.KindInvalidInput))

	clk.Advance(time.Minute)
	updated, err := s.UpdateHash(ctx, "u1", "h2", 1)
	require.NoError(t, err)
	assert.Equal(t, "h2", updated.PasswordHash)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, t0.Add(time.Minute), updated.UpdatedAt)

	// stale version
	_, err = s.UpdateHash(ctx, "u1", "h3", 1)
	assert.True(t, domain.Is(err, "version_conflict"))

	_, err = s.UpdateHash(ctx, "missing", "h3", 1)
	assert.True(t, domain.IsKind(err, domain.KindAccountNotFound))

	require.NoError(t, s.Delete(ctx, "u1"))
	require.NoError(t, s.Delete(ctx, "u1"))
	assert.Zero(t, s.Count())

	_, err = s.Create(ctx, domain.Account{ID: "u3", Email: "a@x.com"})
	require.NoError(t, err)
}

func TestCredentialStore_HonoursContext(t *testing.T) {
	s := NewCredentialStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProfileStore_PatchIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore()

	_, err := s.Get(ctx, "u1")
	assert.True(t, domain.IsKind(err, domain.KindAccountNotFound))

	p := domain.NewProfile(domain.Account{ID: "u1", Email: "a@x.com"}, "Ann", t0)
	require.NoError(t, s.Put(ctx, p))

	name := "Bob"
	require.NoError(t, s.Patch(ctx, "u1", domain.ProfilePatch{DisplayName: &name}, 1))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.DisplayName)
	assert.Equal(t, int64(2), got.Version)

	err = s.Patch(ctx, "u1", domain.ProfilePatch{DisplayName: &name}, 1)
	assert.True(t, domain.Is(err, "version_conflict"))

	err = s.Patch(ctx, "missing", domain.ProfilePatch{DisplayName: &name}, 1)
	assert.True(t, domain.IsKind(err, domain.KindAccountNotFound))

	assert.True(t, domain.IsKind(s.Put(ctx, domain.Profile{}), domain.KindInvalidInput))
}

func TestProfileStore_PutRejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore()

	p := domain.NewProfile(domain.Account{ID: "u1", Email: "a@x.com"}, "Ann", t0)
	p.Role = "root"
	assert.True(t, domain.Is(s.Put(ctx, p), "unknown_role"))
	_, err := s.Get(ctx, "u1")
	assert.True(t, domain.IsKind(err, domain.KindAccountNotFound))

	p.Role = ""
	require.NoError(t, s.Put(ctx, p))
	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, got.Role)
}

func TestProfileStore_SetActive(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore()
	require.NoError(t, s.Put(ctx, domain.NewProfile(domain.Account{ID: "u1"}, "", t0)))

	require.NoError(t, s.SetActive(ctx, "u1", false))
	got, _ := s.Get(ctx, "u1")
	assert.False(t, got.IsActive)
	assert.Equal(t, int64(2), got.Version)

	assert.True(t, domain.IsKind(s.SetActive(ctx, "nope", false), domain.KindAccountNotFound))
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(t0)
	s := NewSessionStore(clk)

	r1, err := s.Create(ctx, "u1", time.Hour)
	require.NoError(t, err)
	r2, err := s.Create(ctx, "u1", time.Hour)
	require.NoError(t, err)
	r3, err := s.Create(ctx, "u2", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)

	id, err := s.Resolve(ctx, r1)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	require.NoError(t, s.Invalidate(ctx, r1))
	require.NoError(t, s.Invalidate(ctx, r1))
	_, err = s.Resolve(ctx, r1)
	assert.True(t, domain.Is(err, "session_invalid"))

	require.NoError(t, s.InvalidateAll(ctx, "u1"))
	_, err = s.Resolve(ctx, r2)
	assert.True(t, domain.Is(err, "session_invalid"))

	_, err = s.Resolve(ctx, r3)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	_, err = s.Resolve(ctx, r3)
	assert.True(t, domain.Is(err, "session_invalid"))
}

func TestAttemptLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(t0)
	l := NewAttemptLimiter(2, time.Minute, clk)

	d, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, _ = l.RecordFailure(ctx, "k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Failures)

	clk.Advance(10 * time.Second)
	d, _ = l.RecordFailure(ctx, "k")
	assert.False(t, d.Allowed)
	assert.Equal(t, 50*time.Second, d.RetryAfter)

	d, _ = l.Check(ctx, "k")
	assert.False(t, d.Allowed)

	// other keys are independent
	d, _ = l.Check(ctx, "other")
	assert.True(t, d.Allowed)

	clk.Advance(50 * time.Second)
	d, _ = l.Check(ctx, "k")
	assert.True(t, d.Allowed)
	assert.Zero(t, d.Failures)
}

func TestAttemptLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	l := NewAttemptLimiter(1, time.Minute, nil)

	d, _ := l.RecordFailure(ctx, "k")
	require.False(t, d.Allowed)

	require.NoError(t, l.Reset(ctx, "k"))
	d, _ = l.Check(ctx, "k")
	assert.True(t, d.Allowed)
}
