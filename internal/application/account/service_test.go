package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func TestNewService_RequiresCollaborators(t *testing.T) {
	full := func() Deps {
		return Deps{
			Credentials: newFakeCredentials(),
			Profiles:    newFakeProfiles(),
			Hasher:      &fakeHasher{},
			Sessions:    newFakeSessions(),
			Locker:      newFakeLocker(),
			Tokens:      &fakeTokens{},
		}
	}

	tests := []struct {
		name   string
		mutate func(d *Deps)
	}{
		{"credentials", func(d *Deps) { d.Credentials = nil }},
		{"profiles", func(d *Deps) { d.Profiles = nil }},
		{"hasher", func(d *Deps) { d.Hasher = nil }},
		{"sessions", func(d *Deps) { d.Sessions = nil }},
		{"locker", func(d *Deps) { d.Locker = nil }},
		{"tokens", func(d *Deps) { d.Tokens = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := full()
			tt.mutate(&d)
			svc, err := NewService(d, Config{})
			require.Error(t, err)
			assert.Nil(t, svc)
		})
	}

	svc, err := NewService(full(), Config{})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMinPasswordLength, svc.MinPasswordLength())
	assert.Equal(t, defaultStoreTimeout, svc.storeTimeout)
	assert.Equal(t, defaultSessionTTL, svc.sessionTTL)
	assert.Equal(t, defaultAccessTokenTTL, svc.accessTokenTTL)
}

func TestBoundary(t *testing.T) {
	assert.NoError(t, boundary("x", nil))

	de := domain.ErrDuplicateAccount()
	assert.Same(t, de, boundary("x", de))

	err := boundary("credentials", context.DeadlineExceeded)
	requireKind(t, err, domain.KindStorageUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, domain.Retryable(err))
}

func TestStoreTimeout_MapsToStorageUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.svc.storeTimeout = 20 * time.Millisecond
	env.creds.findBlock = true

	_, err := env.svc.SignIn(context.Background(), "a@x.com", "secret1")
	requireKind(t, err, domain.KindStorageUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = env.svc.SignUp(context.Background(), SignUpInput{Email: "b@x.com", Password: "secret1"})
	requireKind(t, err, domain.KindStorageUnavailable)
	assert.Zero(t, env.creds.count())
}

func TestLockFailure_MapsToStorageUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount("u1", "a@x.com", "secret1", true)
	env.locker.err = errBoom

	_, err := env.svc.SignIn(context.Background(), "a@x.com", "secret1")
	requireKind(t, err, domain.KindStorageUnavailable)
}

func TestObserve_RecordsOutcomeKind(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount("u1", "a@x.com", "secret1", true)

	_, _ = env.svc.SignIn(context.Background(), "a@x.com", "secret1")
	_, _ = env.svc.SignIn(context.Background(), "a@x.com", "wrong-pass")
	_, _ = env.svc.SignIn(context.Background(), "nobody@x.com", "secret1")

	assert.Equal(t, []string{"ok", "invalid_credential", "account_not_found"}, env.metrics.outcomes["sign_in"])
}
