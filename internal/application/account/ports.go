package account

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

/*
CredentialStore
---------------
Persistence port for Account records.
FindByEmail expects a normalized email and returns domain.ErrAccountNotFound when absent.
Create returns domain.ErrDuplicateAccount on a unique violation.
UpdateHash is conditional on expectedVersion and returns domain.ErrVersionConflict on mismatch.
Delete is only used to compensate a failed sign-up.
*/
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	Create(ctx context.Context, a domain.Account) (domain.Account, error)
	UpdateHash(ctx context.Context, accountID, hash string, expectedVersion int64) (domain.Account, error)
	Delete(ctx context.Context, accountID string) error
}

/*
ProfileStore
------------
Persistence port for Profile documents.
Get returns domain.ErrAccountNotFound when absent.
Put creates or replaces the whole document.
Patch is conditional on expectedVersion.
*/
type ProfileStore interface {
	Get(ctx context.Context, accountID string) (domain.Profile, error)
	Put(ctx context.Context, p domain.Profile) error
	Patch(ctx context.Context, accountID string, patch domain.ProfilePatch, expectedVersion int64) error
}

/*
PasswordHasher
--------------
Abstracts argon2id / bcrypt. Implementations must honour ctx cancellation.
Verify returns (false, nil) on mismatch; errors are reserved for malformed hashes
or cancelled work.
*/
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) (bool, error)
}

type Clock interface {
	Now() time.Time
}

/*
SessionStore
------------
Opaque session references. Invalidate is idempotent.
InvalidateAll forces every session of an account to fail Resolve.
*/
type SessionStore interface {
	Create(ctx context.Context, accountID string, ttl time.Duration) (sessionRef string, err error)
	Resolve(ctx context.Context, sessionRef string) (accountID string, err error)
	Invalidate(ctx context.Context, sessionRef string) error
	InvalidateAll(ctx context.Context, accountID string) error
}

// LimitDecision is the state of a failed-attempt counter.
type LimitDecision struct {
	Allowed    bool
	Failures   int
	Limit      int
	RetryAfter time.Duration // 0 if allowed
}

/*
AttemptLimiter
--------------
Counts failed attempts per key in a fixed window.
Check does not count; only RecordFailure does.
*/
type AttemptLimiter interface {
	Check(ctx context.Context, key string) (LimitDecision, error)
	RecordFailure(ctx context.Context, key string) (LimitDecision, error)
	Reset(ctx context.Context, key string) error
}

/*
AccountLocker
-------------
Serializes mutations of a single account. Lock blocks until the lease is
acquired or ctx is done. The returned unlock func is safe to call once.
*/
type AccountLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

/*
TokenIssuer
-----------
Issues the short-lived access token handed out next to a session reference.
*/
type TokenIssuer interface {
	IssueAccessToken(accountID string, role domain.Role, sessionRef string, ttl time.Duration) (string, error)
}

/*
EventPublisher
--------------
Publishes account lifecycle events. Delivery is best-effort from the service's
point of view: failures are logged, never returned to the caller.
*/
type EventPublisher interface {
	PublishAccountCreated(ctx context.Context, evt AccountCreatedEvent) error
	PublishPasswordChanged(ctx context.Context, evt PasswordChangedEvent) error
}

type AccountCreatedEvent struct {
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type PasswordChangedEvent struct {
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	ChangedAt time.Time `json:"changedAt"`
}

// Metrics receives operation outcomes. outcome is "ok" or an error kind.
type Metrics interface {
	ObserveOperation(op string, outcome string, dur time.Duration)
	ProfileRepaired()
	CompensatedSignUp()
}
