package authcore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tradepost/authcore"
	"github.com/tradepost/authcore/session"
)

/*
====================================
TEST FIXTURE
====================================
*/

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fastHasher avoids Argon2 cost in engine tests.
type fastHasher struct{}

func (fastHasher) Hash(password string) (string, error) { return "fast$" + password, nil }

func (fastHasher) Verify(password, encodedHash string) (bool, error) {
	return encodedHash == "fast$"+password, nil
}

type storedUser struct {
	user          authcore.User
	resetDigest   *[32]byte
	resetExpires  time.Time
	verifDigest   *[32]byte
}

// stubUsers is an in-memory authcore.UserStore with the same consume
// semantics as the postgres implementation.
type stubUsers struct {
	mu    sync.Mutex
	users map[string]*storedUser
}

func newStubUsers() *stubUsers {
	return &stubUsers{users: make(map[string]*storedUser)}
}

func (s *stubUsers) add(id, handle, passwordHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &storedUser{user: authcore.User{ID: id, Handle: handle, PasswordHash: passwordHash}}
}

func (s *stubUsers) GetByHandle(_ context.Context, handle string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.users {
		if entry.user.Handle == handle {
			copied := entry.user
			return &copied, nil
		}
	}
	return nil, authcore.ErrUserNotFound
}

func (s *stubUsers) GetByID(_ context.Context, id string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.users[id]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	copied := entry.user
	return &copied, nil
}

func (s *stubUsers) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.users[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	entry.user.PasswordHash = passwordHash
	return nil
}

func (s *stubUsers) SetResetToken(_ context.Context, id string, digest [32]byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.users[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	entry.resetDigest = &digest
	entry.resetExpires = expiresAt
	return nil
}

func (s *stubUsers) ConsumeResetToken(_ context.Context, digest [32]byte, newPasswordHash string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.users {
		if entry.resetDigest == nil || *entry.resetDigest != digest {
			continue
		}
		if !now.Before(entry.resetExpires) {
			return "", authcore.ErrTokenExpired
		}
		entry.resetDigest = nil
		entry.user.PasswordHash = newPasswordHash
		return id, nil
	}
	return "", authcore.ErrTokenConsumed
}

func (s *stubUsers) SetVerificationToken(_ context.Context, id string, digest [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.users[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	entry.verifDigest = &digest
	return nil
}

func (s *stubUsers) ConsumeVerificationToken(_ context.Context, digest [32]byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.users {
		if entry.verifDigest != nil && *entry.verifDigest == digest {
			entry.verifDigest = nil
			entry.user.Verified = true
			return id, nil
		}
	}
	return "", authcore.ErrTokenConsumed
}

type fixture struct {
	engine *authcore.Engine
	users  *stubUsers
	clock  *testClock
	sink   *authcore.ChannelSink
}

func testConfig() authcore.Config {
	cfg := authcore.Config{}
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.AccessTTL = 15 * time.Minute
	cfg.Session.TTL = time.Hour
	cfg.PasswordReset.TokenTTL = 15 * time.Minute
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	return cfg
}

func newFixture(t *testing.T, mutate func(*authcore.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	users := newStubUsers()
	users.add("user-1", "alice@example.com", "fast$hunter2-original")
	sink := authcore.NewChannelSink(64)

	engine, err := authcore.New().
		WithConfig(cfg).
		WithUserStore(users).
		WithSessionStore(session.NewMemoryStore(clock.Now)).
		WithPasswordHasher(fastHasher{}).
		WithAuditSink(sink).
		WithClock(clock.Now).
		WithWarnFunc(func(string, ...any) {}).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)

	return &fixture{engine: engine, users: users, clock: clock, sink: sink}
}

func (f *fixture) login(t *testing.T) *authcore.LoginResult {
	t.Helper()
	result, err := f.engine.Login(context.Background(), "alice@example.com", "hunter2-original")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	return result
}

/*
====================================
TESTS
====================================
*/

func TestLoginFailuresAreUniform(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, unknownErr := f.engine.Login(ctx, "nobody@example.com", "whatever")
	_, wrongErr := f.engine.Login(ctx, "alice@example.com", "wrong-password")

	if !errors.Is(unknownErr, authcore.ErrInvalidCredentials) {
		t.Fatalf("unknown handle = %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongErr, authcore.ErrInvalidCredentials) {
		t.Fatalf("wrong password = %v, want ErrInvalidCredentials", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("failure messages differ: %q vs %q", unknownErr, wrongErr)
	}
}

func TestLoginIssuesWorkingCredentials(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result := f.login(t)
	if result.UserID != "user-1" {
		t.Fatalf("UserID = %q, want user-1", result.UserID)
	}
	if result.SessionToken == "" || result.AccessToken == "" {
		t.Fatal("missing tokens in login result")
	}

	auth, err := f.engine.Validate(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if auth.UserID != "user-1" {
		t.Fatalf("Validate UserID = %q, want user-1", auth.UserID)
	}
}

func TestTwoDevicesLogoutOneKeepsOther(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.login(t)
	second := f.login(t)

	count, err := f.engine.SessionCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("SessionCount error: %v", err)
	}
	if count != 2 {
		t.Fatalf("SessionCount = %d, want 2", count)
	}

	if err := f.engine.Logout(ctx, first.SessionToken); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	if _, err := f.engine.Refresh(ctx, first.SessionToken); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("Refresh(revoked) = %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.engine.Refresh(ctx, second.SessionToken); err != nil {
		t.Fatalf("Refresh(other device) error: %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result := f.login(t)
	if err := f.engine.Logout(ctx, result.SessionToken); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if err := f.engine.Logout(ctx, result.SessionToken); err != nil {
		t.Fatalf("repeated Logout = %v, want nil", err)
	}
	if err := f.engine.Logout(ctx, "never-issued-token"); err != nil {
		t.Fatalf("Logout(unknown) = %v, want nil", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.login(t)
	second := f.login(t)

	removed, err := f.engine.LogoutAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("LogoutAll error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("LogoutAll removed %d, want 2", removed)
	}

	for _, token := range []string{first.SessionToken, second.SessionToken} {
		if _, err := f.engine.Refresh(ctx, token); !errors.Is(err, authcore.ErrInvalidCredentials) {
			t.Fatalf("Refresh after LogoutAll = %v, want ErrInvalidCredentials", err)
		}
	}
}

func TestRefreshRejectsSessionAtExactExpiry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result := f.login(t)

	f.clock.Advance(time.Hour - time.Second)
	if _, err := f.engine.Refresh(ctx, result.SessionToken); err != nil {
		t.Fatalf("Refresh just before expiry: %v", err)
	}

	// The expiry instant itself is already outside the validity window.
	f.clock.Advance(time.Second)
	if _, err := f.engine.Refresh(ctx, result.SessionToken); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("Refresh at expiry = %v, want ErrInvalidCredentials", err)
	}

	// The expired row was removed eagerly, not left for the sweeper.
	count, err := f.engine.SessionCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("SessionCount error: %v", err)
	}
	if count != 0 {
		t.Fatalf("SessionCount = %d after expired refresh, want 0", count)
	}
}

func TestSessionLimit(t *testing.T) {
	f := newFixture(t, func(cfg *authcore.Config) {
		cfg.Session.MaxSessionsPerUser = 2
	})

	f.login(t)
	f.login(t)

	_, err := f.engine.Login(context.Background(), "alice@example.com", "hunter2-original")
	if !errors.Is(err, authcore.ErrSessionLimitExceeded) {
		t.Fatalf("third login = %v, want ErrSessionLimitExceeded", err)
	}
}

func TestValidateRejectsExpiredAccessToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result := f.login(t)

	f.clock.Advance(16 * time.Minute)
	if _, err := f.engine.Validate(ctx, result.AccessToken); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("Validate(expired) = %v, want ErrInvalidCredentials", err)
	}
}

func TestMetricsCountLoginOutcomes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.login(t)
	_, _ = f.engine.Login(ctx, "alice@example.com", "wrong")

	snap := f.engine.MetricsSnapshot()
	if got := snap.Counters[authcore.MetricLoginSuccess]; got != 1 {
		t.Fatalf("login success counter = %d, want 1", got)
	}
	if got := snap.Counters[authcore.MetricLoginFailure]; got != 1 {
		t.Fatalf("login failure counter = %d, want 1", got)
	}
	if got := snap.Counters[authcore.MetricSessionCreated]; got != 1 {
		t.Fatalf("session created counter = %d, want 1", got)
	}
}

func TestAuditEventsCarryNoSessionToken(t *testing.T) {
	f := newFixture(t, nil)

	result := f.login(t)
	f.engine.Close()

	var sawLogin bool
drain:
	for {
		select {
		case event := <-f.sink.Events():
			if event.EventType == "login_success" {
				sawLogin = true
				if event.UserID != "user-1" {
					t.Fatalf("audit UserID = %q, want user-1", event.UserID)
				}
			}
			for _, value := range event.Metadata {
				if value == result.SessionToken {
					t.Fatal("session token leaked into audit metadata")
				}
			}
		default:
			break drain
		}
	}
	if !sawLogin {
		t.Fatal("no login_success audit event emitted")
	}
}

// outageUsers fails every lookup the way a dead connection would.
type outageUsers struct {
	*stubUsers
	err error
}

func (s *outageUsers) GetByHandle(context.Context, string) (*authcore.User, error) {
	return nil, s.err
}

func newOutageEngine(t *testing.T, outage error) *authcore.Engine {
	t.Helper()

	clock := newTestClock()
	engine, err := authcore.New().
		WithConfig(testConfig()).
		WithUserStore(&outageUsers{stubUsers: newStubUsers(), err: outage}).
		WithSessionStore(session.NewMemoryStore(clock.Now)).
		WithPasswordHasher(fastHasher{}).
		WithClock(clock.Now).
		WithWarnFunc(func(string, ...any) {}).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestLoginSurfacesStoreOutage(t *testing.T) {
	outage := errors.New("dial tcp 127.0.0.1:5432: connection refused")
	engine := newOutageEngine(t, outage)

	_, err := engine.Login(context.Background(), "alice@example.com", "hunter2-original")
	if !errors.Is(err, authcore.ErrStoreUnavailable) {
		t.Fatalf("Login during outage = %v, want ErrStoreUnavailable", err)
	}
	if errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatal("store outage surfaced as an authentication failure")
	}
}

func TestResetRequestSurfacesStoreOutage(t *testing.T) {
	outage := errors.New("dial tcp 127.0.0.1:5432: connection refused")
	engine := newOutageEngine(t, outage)

	token, err := engine.RequestPasswordReset(context.Background(), "alice@example.com")
	if !errors.Is(err, authcore.ErrStoreUnavailable) {
		t.Fatalf("RequestPasswordReset during outage = %v, want ErrStoreUnavailable", err)
	}
	if token != "" {
		t.Fatalf("token issued during outage: %q", token)
	}
}

func TestSweepExpiredSessionsCountsDeletions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.login(t)
	f.login(t)
	f.clock.Advance(time.Hour) // both sessions now at expiry

	deleted, err := f.engine.SweepExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("SweepExpiredSessions error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	snap := f.engine.MetricsSnapshot()
	if got := snap.Counters[authcore.MetricSweepDeleted]; got != 2 {
		t.Fatalf("sweep counter = %d, want 2", got)
	}
}

func TestSessionSweeperFeedsSweepCounter(t *testing.T) {
	f := newFixture(t, nil)

	sweeper := f.engine.SessionSweeper()
	if sweeper.OnSweep == nil {
		t.Fatal("SessionSweeper returned a sweeper without a counter hook")
	}
	sweeper.OnSweep(3)

	snap := f.engine.MetricsSnapshot()
	if got := snap.Counters[authcore.MetricSweepDeleted]; got != 3 {
		t.Fatalf("sweep counter = %d, want 3", got)
	}
}
