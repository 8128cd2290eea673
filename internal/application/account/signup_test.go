package account

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func TestSignUp_ThenGetProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prof, err := env.svc.SignUp(ctx, SignUpInput{Email: "a@x.com", Password: "secret1", DisplayName: "Ann"})
	require.NoError(t, err)

	assert.NotEmpty(t, prof.AccountID)
	assert.Equal(t, "a@x.com", prof.Email)
	assert.Equal(t, "Ann", prof.DisplayName)
	assert.Equal(t, domain.RoleUser, prof.Role)
	assert.True(t, prof.IsActive)
	assert.Equal(t, testEpoch, prof.CreatedAt)
	assert.Equal(t, testEpoch, prof.LastLoginAt)

	got, err := env.svc.GetProfile(ctx, prof.AccountID)
	require.NoError(t, err)
	assert.Equal(t, prof, got)

	acct, ok := env.creds.get("a@x.com")
	require.True(t, ok)
	assert.Equal(t, "hash:secret1", acct.PasswordHash)
	assert.Equal(t, int64(1), acct.Version)

	require.Len(t, env.pub.created, 1)
	assert.Equal(t, prof.AccountID, env.pub.created[0].AccountID)
	assert.Equal(t, []string{"account.sign_up:success"}, env.audit.actions())
}

func TestSignUp_NormalizesEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prof, err := env.svc.SignUp(ctx, SignUpInput{Email: "  Ann@Example.COM ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", prof.Email)

	_, err = env.svc.SignUp(ctx, SignUpInput{Email: "ann@example.com", Password: "another1"})
	requireKind(t, err, domain.KindDuplicateAccount)
}

func TestSignUp_DuplicatePerformsNoWrites(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount("u1", "a@x.com", "secret1", true)
	profilesBefore := env.profiles.puts

	_, err := env.svc.SignUp(context.Background(), SignUpInput{Email: "a@x.com", Password: "other12"})
	requireKind(t, err, domain.KindDuplicateAccount)

	assert.Empty(t, env.creds.created)
	assert.Equal(t, profilesBefore, env.profiles.puts)
	assert.Empty(t, env.pub.created)

	acct, _ := env.creds.get("a@x.com")
	assert.Equal(t, "hash:secret1", acct.PasswordHash)
}

func TestSignUp_InputValidation(t *testing.T) {
	tests := []struct {
		name string
		in   SignUpInput
		kind domain.ErrKind
		code string
	}{
		{"missing email", SignUpInput{Email: " ", Password: "secret1"}, domain.KindInvalidInput, "missing_field"},
		{"malformed email", SignUpInput{Email: "not-an-email", Password: "secret1"}, domain.KindInvalidInput, "invalid_field"},
		{"short password", SignUpInput{Email: "a@x.com", Password: "12345"}, domain.KindWeakCredential, "weak_password"},
		{"empty password", SignUpInput{Email: "a@x.com", Password: ""}, domain.KindWeakCredential, "weak_password"},
		{"display name too long", SignUpInput{Email: "a@x.com", Password: "secret1", DisplayName: strings.Repeat("n", domain.MaxDisplayNameLength+1)}, domain.KindInvalidInput, "invalid_field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.svc.SignUp(context.Background(), tt.in)
			requireKind(t, err, tt.kind)
			assert.True(t, domain.Is(err, tt.code), "code: %v", err)
			assert.Zero(t, env.creds.count())
		})
	}
}

func TestSignUp_ExactlyMinimumLengthAccepted(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.SignUp(context.Background(), SignUpInput{Email: "a@x.com", Password: "123456"})
	require.NoError(t, err)
}

func TestSignUp_ProfileWriteFailureCompensates(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.putErr = errBoom

	_, err := env.svc.SignUp(context.Background(), SignUpInput{Email: "a@x.com", Password: "secret1"})
	requireKind(t, err, domain.KindStorageUnavailable)
	assert.ErrorIs(t, err, errBoom)

	require.Len(t, env.creds.created, 1)
	assert.Equal(t, []string{env.creds.created[0].ID}, env.creds.deleted)
	assert.Zero(t, env.creds.count())
	assert.Equal(t, 1, env.metrics.compensations)
	assert.Empty(t, env.pub.created)

	// the email is free again
	env.profiles.putErr = nil
	_, err = env.svc.SignUp(context.Background(), SignUpInput{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
}

func TestSignUp_CompensationFailureStillReportsStorageError(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.putErr = errBoom
	env.creds.deleteErr = errBoom

	_, err := env.svc.SignUp(context.Background(), SignUpInput{Email: "a@x.com", Password: "secret1"})
	requireKind(t, err, domain.KindStorageUnavailable)

	// orphaned account remains; SignIn repairs it later
	assert.Equal(t, 1, env.creds.count())
}

func TestSignUp_CreateRaceReportsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.creds.createErr = domain.ErrDuplicateAccount()

	_, err := env.svc.SignUp(context.Background(), SignUpInput{Email: "a@x.com", Password: "secret1"})
	requireKind(t, err, domain.KindDuplicateAccount)
	assert.Zero(t, env.profiles.puts)
}

func TestSignUp_HasherFailure(t *testing.T) {
	env := newTestEnv(t)
	env.hasher.hashFn = func(string) (string, error) { return "", errBoom }

	_, err := env.svc.SignUp(context.Background(), SignUpInput{Email: "a@x.com", Password: "secret1"})
	requireKind(t, err, domain.KindStorageUnavailable)
	assert.True(t, domain.Is(err, "hash_failed"))
	assert.Zero(t, env.creds.count())
}

func TestSignUp_PublishFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.pub.err = errBoom

	_, err := env.svc.SignUp(context.Background(), SignUpInput{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.creds.count())
}
