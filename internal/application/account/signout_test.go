package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func TestSignOut(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount("u1", "a@x.com", "secret1", true)
	ctx := context.Background()

	res, err := env.svc.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, env.svc.SignOut(ctx, res.Session.Ref))
	_, err = env.svc.ResolveSession(ctx, res.Session.Ref)
	requireKind(t, err, domain.KindInvalidCredential)

	// idempotent, and empty is a no-op
	require.NoError(t, env.svc.SignOut(ctx, res.Session.Ref))
	require.NoError(t, env.svc.SignOut(ctx, ""))
	assert.Len(t, env.sessions.revoked, 2)
}

func TestSignOut_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.revokeErr = errBoom

	err := env.svc.SignOut(context.Background(), "sess-1")
	requireKind(t, err, domain.KindStorageUnavailable)
}

func TestSignOutEverywhere(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount("u1", "a@x.com", "secret1", true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.svc.SignIn(ctx, "a@x.com", "secret1")
		require.NoError(t, err)
	}
	require.Equal(t, 3, env.sessions.liveFor("u1"))

	require.NoError(t, env.svc.SignOutEverywhere(ctx, "u1"))
	assert.Zero(t, env.sessions.liveFor("u1"))

	err := env.svc.SignOutEverywhere(ctx, "")
	requireKind(t, err, domain.KindInvalidInput)
}

func TestResolveSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount("u1", "a@x.com", "secret1", true)
	ctx := context.Background()

	res, err := env.svc.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	prof, err := env.svc.ResolveSession(ctx, res.Session.Ref)
	require.NoError(t, err)
	assert.Equal(t, "u1", prof.AccountID)

	_, err = env.svc.ResolveSession(ctx, "")
	requireKind(t, err, domain.KindInvalidCredential)
	assert.True(t, domain.Is(err, "session_invalid"))

	p := env.profiles.byID["u1"]
	p.IsActive = false
	env.profiles.byID["u1"] = p
	_, err = env.svc.ResolveSession(ctx, res.Session.Ref)
	requireKind(t, err, domain.KindAccountDeactivated)

	delete(env.profiles.byID, "u1")
	_, err = env.svc.ResolveSession(ctx, res.Session.Ref)
	requireKind(t, err, domain.KindAccountNotFound)
}
