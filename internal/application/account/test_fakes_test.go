package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/clock"
)

/*
Fakes for ports
*/

type fakeCredentials struct {
	mu sync.Mutex

	byEmail map[string]domain.Account

	// injected errors (if set, method returns error)
	findErr   error
	createErr error
	updateErr error
	deleteErr error

	// findBlock makes FindByEmail wait for ctx to expire
	findBlock bool

	// record calls
	created []domain.Account
	deleted []string
	updates int
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{byEmail: map[string]domain.Account{}}
}

func (f *fakeCredentials) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	if f.findBlock {
		<-ctx.Done()
		return domain.Account{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return domain.Account{}, f.findErr
	}
	a, ok := f.byEmail[email]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return a, nil
}

func (f *fakeCredentials) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return domain.Account{}, f.createErr
	}
	if _, exists := f.byEmail[a.Email]; exists {
		return domain.Account{}, domain.ErrDuplicateAccount()
	}
	f.byEmail[a.Email] = a
	f.created = append(f.created, a)
	return a, nil
}

func (f *fakeCredentials) UpdateHash(ctx context.Context, accountID, hash string, expectedVersion int64) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return domain.Account{}, f.updateErr
	}
	for email, a := range f.byEmail {
		if a.ID != accountID {
			continue
		}
		if a.Version != expectedVersion {
			return domain.Account{}, domain.ErrVersionConflict("account")
		}
		a.PasswordHash = hash
		a.Version++
		a.UpdatedAt = time.Now().UTC()
		f.byEmail[email] = a
		f.updates++
		return a, nil
	}
	return domain.Account{}, domain.ErrAccountNotFound()
}

func (f *fakeCredentials) Delete(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	for email, a := range f.byEmail {
		if a.ID == accountID {
			delete(f.byEmail, email)
		}
	}
	f.deleted = append(f.deleted, accountID)
	return nil
}

func (f *fakeCredentials) get(email string) (domain.Account, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byEmail[email]
	return a, ok
}

func (f *fakeCredentials) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEmail)
}

type fakeProfiles struct {
	mu sync.Mutex

	byID map[string]domain.Profile

	getErr   error
	putErr   error
	patchErr error

	// beforePut runs ahead of every Put, outside the store mutex
	beforePut func(domain.Profile)

	puts    int
	patches int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byID: map[string]domain.Profile{}}
}

func (f *fakeProfiles) Get(ctx context.Context, accountID string) (domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return domain.Profile{}, f.getErr
	}
	p, ok := f.byID[accountID]
	if !ok {
		return domain.Profile{}, domain.ErrAccountNotFound()
	}
	return p, nil
}

func (f *fakeProfiles) Put(ctx context.Context, p domain.Profile) error {
	if f.beforePut != nil {
		f.beforePut(p)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return f.putErr
	}
	f.byID[p.AccountID] = p
	f.puts++
	return nil
}

func (f *fakeProfiles) Patch(ctx context.Context, accountID string, patch domain.ProfilePatch, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.patchErr != nil {
		return f.patchErr
	}
	p, ok := f.byID[accountID]
	if !ok {
		return domain.ErrAccountNotFound()
	}
	if p.Version != expectedVersion {
		return domain.ErrVersionConflict("profile")
	}
	f.byID[accountID] = patch.Apply(p)
	f.patches++
	return nil
}

func (f *fakeProfiles) get(accountID string) (domain.Profile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[accountID]
	return p, ok
}

type fakeHasher struct {
	hashFn   func(pw string) (string, error)
	verifyFn func(pw, hash string) (bool, error)
}

func (h *fakeHasher) Hash(ctx context.Context, password string) (string, error) {
	if h.hashFn != nil {
		return h.hashFn(password)
	}
	return "hash:" + password, nil
}

func (h *fakeHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if h.verifyFn != nil {
		return h.verifyFn(password, hash)
	}
	return hash == "hash:"+password, nil
}

type fakeSessions struct {
	mu sync.Mutex

	next    int
	live    map[string]string // ref -> accountID
	revoked []string
	allFor  []string

	createErr error
	revokeErr error
	allErr    error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{live: map[string]string{}}
}

func (s *fakeSessions) Create(ctx context.Context, accountID string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return "", s.createErr
	}
	s.next++
	ref := fmt.Sprintf("sess-%d", s.next)
	s.live[ref] = accountID
	return ref, nil
}

func (s *fakeSessions) Resolve(ctx context.Context, ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.live[ref]
	if !ok {
		return "", domain.ErrSessionInvalid()
	}
	return id, nil
}

func (s *fakeSessions) Invalidate(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revokeErr != nil {
		return s.revokeErr
	}
	delete(s.live, ref)
	s.revoked = append(s.revoked, ref)
	return nil
}

func (s *fakeSessions) InvalidateAll(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.allErr != nil {
		return s.allErr
	}
	for ref, id := range s.live {
		if id == accountID {
			delete(s.live, ref)
		}
	}
	s.allFor = append(s.allFor, accountID)
	return nil
}

func (s *fakeSessions) liveFor(accountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.live {
		if id == accountID {
			n++
		}
	}
	return n
}

type fakeLimiter struct {
	mu sync.Mutex

	limit    int
	failures map[string]int
	checkErr error
	resets   []string
}

func newFakeLimiter(limit int) *fakeLimiter {
	return &fakeLimiter{limit: limit, failures: map[string]int{}}
}

func (l *fakeLimiter) Check(ctx context.Context, key string) (LimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.checkErr != nil {
		return LimitDecision{}, l.checkErr
	}
	n := l.failures[key]
	d := LimitDecision{Allowed: n < l.limit, Failures: n, Limit: l.limit}
	if !d.Allowed {
		d.RetryAfter = time.Minute
	}
	return d, nil
}

func (l *fakeLimiter) RecordFailure(ctx context.Context, key string) (LimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures[key]++
	n := l.failures[key]
	return LimitDecision{Allowed: n < l.limit, Failures: n, Limit: l.limit}, nil
}

func (l *fakeLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, key)
	l.resets = append(l.resets, key)
	return nil
}

func (l *fakeLimiter) failuresFor(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[key]
}

// fakeLocker is a real keyed mutex so concurrency tests exercise serialization.
type fakeLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	err   error
	keys  []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{slots: map[string]chan struct{}{}}
}

func (l *fakeLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.err != nil {
		l.mu.Unlock()
		return nil, l.err
	}
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	l.keys = append(l.keys, key)
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *fakeLocker) calls(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, k := range l.keys {
		if k == key {
			n++
		}
	}
	return n
}

type fakeTokens struct {
	err error
}

func (t *fakeTokens) IssueAccessToken(accountID string, role domain.Role, sessionRef string, ttl time.Duration) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return fmt.Sprintf("jwt(%s,%s,%s)", accountID, role, sessionRef), nil
}

type fakePublisher struct {
	mu      sync.Mutex
	err     error
	created []AccountCreatedEvent
	changed []PasswordChangedEvent
}

func (p *fakePublisher) PublishAccountCreated(ctx context.Context, evt AccountCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.created = append(p.created, evt)
	return nil
}

func (p *fakePublisher) PublishPasswordChanged(ctx context.Context, evt PasswordChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.changed = append(p.changed, evt)
	return nil
}

type fakeMetrics struct {
	mu            sync.Mutex
	outcomes      map[string][]string
	repairs       int
	compensations int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{outcomes: map[string][]string{}}
}

func (m *fakeMetrics) ObserveOperation(op, outcome string, dur time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[op] = append(m.outcomes[op], outcome)
}

func (m *fakeMetrics) ProfileRepaired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repairs++
}

func (m *fakeMetrics) CompensatedSignUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compensations++
}

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

type auditSink struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *auditSink) record(action string, fields map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, fields: fields})
}

func (a *auditSink) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action+":"+e.fields["result"])
	}
	return out
}

/*
Test environment
*/

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *Service
	creds    *fakeCredentials
	profiles *fakeProfiles
	hasher   *fakeHasher
	sessions *fakeSessions
	limiter  *fakeLimiter
	locker   *fakeLocker
	tokens   *fakeTokens
	pub      *fakePublisher
	metrics  *fakeMetrics
	clock    *clock.Manual
	audit    *auditSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		creds:    newFakeCredentials(),
		profiles: newFakeProfiles(),
		hasher:   &fakeHasher{},
		sessions: newFakeSessions(),
		limiter:  newFakeLimiter(3),
		locker:   newFakeLocker(),
		tokens:   &fakeTokens{},
		pub:      &fakePublisher{},
		metrics:  newFakeMetrics(),
		clock:    clock.NewManual(testEpoch),
		audit:    &auditSink{},
	}

	svc, err := NewService(Deps{
		Credentials: env.creds,
		Profiles:    env.profiles,
		Hasher:      env.hasher,
		Sessions:    env.sessions,
		Limiter:     env.limiter,
		Locker:      env.locker,
		Tokens:      env.tokens,
		Publisher:   env.pub,
		Clock:       env.clock,
	}, Config{
		MinPasswordLength: 6,
		StoreTimeout:      time.Second,
		SessionTTL:        time.Hour,
		AccessTokenTTL:    15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	env.svc = svc.WithAudit(env.audit.record).WithMetrics(env.metrics)
	return env
}

// seedAccount stores an account + profile directly, bypassing SignUp.
func (e *testEnv) seedAccount(id, email, password string, active bool) (domain.Account, domain.Profile) {
	a := domain.Account{
		ID:           id,
		Email:        email,
		PasswordHash: "hash:" + password,
		Version:      1,
		CreatedAt:    testEpoch.Add(-24 * time.Hour),
	}
	e.creds.byEmail[email] = a

	p := domain.NewProfile(a, "seeded", a.CreatedAt)
	p.IsActive = active
	e.profiles.byID[id] = p
	return a, p
}

var errBoom = errors.New("boom")

func requireKind(t *testing.T, err error, kind domain.ErrKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error kind=%q, got nil", kind)
	}
	if !domain.IsKind(err, kind) {
		t.Fatalf("expected kind=%q, got err=%v", kind, err)
	}
}
