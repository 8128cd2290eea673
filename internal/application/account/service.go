package account

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/clock"
	appCtx "github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/context"
)

const (
	defaultStoreTimeout   = 3 * time.Second
	defaultSessionTTL     = 7 * 24 * time.Hour
	defaultAccessTokenTTL = 15 * time.Minute
)

// Service implements the account operations over its ports.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	creds    CredentialStore
	profiles ProfileStore
	hasher   PasswordHasher
	sessions SessionStore
	limiter  AttemptLimiter
	locker   AccountLocker
	tokens   TokenIssuer
	pub      EventPublisher
	clock    Clock

	minPasswordLength int
	storeTimeout      time.Duration
	sessionTTL        time.Duration
	accessTokenTTL    time.Duration

	log     zerolog.Logger
	metrics Metrics
	audit   func(action string, fields map[string]string)
}

// Deps lists the collaborators. Limiter, Publisher and Clock are optional.
type Deps struct {
	Credentials CredentialStore
	Profiles    ProfileStore
	Hasher      PasswordHasher
	Sessions    SessionStore
	Limiter     AttemptLimiter
	Locker      AccountLocker
	Tokens      TokenIssuer
	Publisher   EventPublisher
	Clock       Clock
}

type Config struct {
	MinPasswordLength int
	// StoreTimeout bounds every collaborator call, including lock acquisition.
	StoreTimeout   time.Duration
	SessionTTL     time.Duration
	AccessTokenTTL time.Duration
}

func NewService(deps Deps, cfg Config) (*Service, error) {
	switch {
	case deps.Credentials == nil:
		return nil, errors.New("account: credential store is required")
	case deps.Profiles == nil:
		return nil, errors.New("account: profile store is required")
	case deps.Hasher == nil:
		return nil, errors.New("account: password hasher is required")
	case deps.Sessions == nil:
		return nil, errors.New("account: session store is required")
	case deps.Locker == nil:
		return nil, errors.New("account: account locker is required")
	case deps.Tokens == nil:
		return nil, errors.New("account: token issuer is required")
	}

	s := &Service{
		creds:    deps.Credentials,
		profiles: deps.Profiles,
		hasher:   deps.Hasher,
		sessions: deps.Sessions,
		limiter:  deps.Limiter,
		locker:   deps.Locker,
		tokens:   deps.Tokens,
		pub:      deps.Publisher,
		clock:    deps.Clock,

		minPasswordLength: cfg.MinPasswordLength,
		storeTimeout:      cfg.StoreTimeout,
		sessionTTL:        cfg.SessionTTL,
		accessTokenTTL:    cfg.AccessTokenTTL,

		log:     zerolog.Nop(),
		metrics: nopMetrics{},
		audit:   func(string, map[string]string) {},
	}
	if s.limiter == nil {
		s.limiter = nopLimiter{}
	}
	if s.pub == nil {
		s.pub = nopPublisher{}
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.minPasswordLength <= 0 {
		s.minPasswordLength = domain.DefaultMinPasswordLength
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaultStoreTimeout
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = defaultSessionTTL
	}
	if s.accessTokenTTL <= 0 {
		s.accessTokenTTL = defaultAccessTokenTTL
	}
	return s, nil
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

func (s *Service) WithLogger(l zerolog.Logger) *Service {
	s.log = l.With().Str("component", "account_service").Logger()
	return s
}

func (s *Service) WithMetrics(m Metrics) *Service {
	if m != nil {
		s.metrics = m
	}
	return s
}

// MinPasswordLength is the policy threshold used by SignUp and ChangePassword.
func (s *Service) MinPasswordLength() int { return s.minPasswordLength }

// ---- boundary helpers ----

func (s *Service) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// boundary translates a collaborator error into the taxonomy.
// Domain errors pass through; anything else (timeouts, driver errors) is storage_unavailable.
func boundary(component string, err error) error {
	if err == nil {
		return nil
	}
	if de, ok := domain.As(err); ok {
		return de
	}
	return domain.ErrStorageUnavailable(component, err)
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	l := s.log
	if id := appCtx.RequestID(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = "error"
		if k := domain.KindOf(*errp); k != "" {
			outcome = string(k)
		}
	}
	s.metrics.ObserveOperation(op, outcome, time.Since(start))
}

func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	unlock, err := s.locker.Lock(c, key)
	if err != nil {
		return nil, boundary("locker", err)
	}
	return unlock, nil
}

func accountLockKey(accountID string) string { return "account:" + accountID }
func emailLockKey(email string) string       { return "email:" + email }

func (s *Service) findAccount(ctx context.Context, email string) (domain.Account, error) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	a, err := s.creds.FindByEmail(c, email)
	if err != nil {
		return domain.Account{}, boundary("credentials", err)
	}
	return a, nil
}

// loadProfile reports found=false (and no error) when the profile is missing.
func (s *Service) loadProfile(ctx context.Context, accountID string) (domain.Profile, bool, error) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	p, err := s.profiles.Get(c, accountID)
	if err != nil {
		if domain.IsKind(err, domain.KindAccountNotFound) {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, boundary("profiles", err)
	}
	return p, true, nil
}

func (s *Service) putProfile(ctx context.Context, p domain.Profile) error {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	return boundary("profiles", s.profiles.Put(c, p))
}

func (s *Service) patchProfile(ctx context.Context, accountID string, patch domain.ProfilePatch, version int64) error {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	return boundary("profiles", s.profiles.Patch(c, accountID, patch, version))
}

func (s *Service) hash(ctx context.Context, password string) (string, error) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	h, err := s.hasher.Hash(c, password)
	if err != nil {
		if _, ok := domain.As(err); ok {
			return "", err
		}
		return "", domain.ErrHashFailed(err)
	}
	return h, nil
}

func (s *Service) verify(ctx context.Context, password, hash string) (bool, error) {
	c, cancel := s.callCtx(ctx)
	defer cancel()
	ok, err := s.hasher.Verify(c, password, hash)
	if err != nil {
		return false, boundary("hasher", err)
	}
	return ok, nil
}

// ---- defaults for optional ports ----

type nopLimiter struct{}

func (nopLimiter) Check(context.Context, string) (LimitDecision, error) {
	return LimitDecision{Allowed: true}, nil
}

func (nopLimiter) RecordFailure(context.Context, string) (LimitDecision, error) {
	return LimitDecision{Allowed: true}, nil
}

func (nopLimiter) Reset(context.Context, string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishAccountCreated(context.Context, AccountCreatedEvent) error   { return nil }
func (nopPublisher) PublishPasswordChanged(context.Context, PasswordChangedEvent) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration) {}
func (nopMetrics) ProfileRepaired()                               {}
func (nopMetrics) CompensatedSignUp()                             {}
