package authcore

import (
	"errors"
	"log"
	"time"

	"github.com/tradepost/authcore/internal"
	"github.com/tradepost/authcore/internal/audit"
	"github.com/tradepost/authcore/internal/metrics"
	"github.com/tradepost/authcore/jwt"
	"github.com/tradepost/authcore/password"
	"github.com/tradepost/authcore/session"
)

// Builder assembles an Engine. Obtain one with New, chain the With methods
// and call Build once.
type Builder struct {
	config       Config
	users        UserStore
	sessions     session.Store
	hasher       PasswordHasher
	auditSink    AuditSink
	now          func() time.Time
	warn         func(format string, args ...any)
	metricsForce *bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithUserStore sets the account backend. Required.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithSessionStore sets the session backend. When omitted, Build falls back
// to an in-memory store and warns, since sessions then die with the process.
func (b *Builder) WithSessionStore(sessions session.Store) *Builder {
	b.sessions = sessions
	return b
}

// WithPasswordHasher overrides the Argon2id hasher built from Config.Password.
// Mostly useful in tests, where a fast fake keeps suites quick.
func (b *Builder) WithPasswordHasher(hasher PasswordHasher) *Builder {
	b.hasher = hasher
	return b
}

// WithAuditSink sets the destination for audit events. Events are dispatched
// asynchronously; a slow sink never stalls a login.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source for the engine and its token manager.
// Every expiry decision the engine makes flows through this one clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithWarnFunc overrides where configuration warnings are written. The
// default is the standard logger.
func (b *Builder) WithWarnFunc(warn func(format string, args ...any)) *Builder {
	b.warn = warn
	return b
}

// WithMetricsEnabled overrides Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.metricsForce = &enabled
	return b
}

// Build validates the configuration and assembles the Engine. It fails fast
// on a missing secret or user store rather than deferring the error to the
// first login.
func (b *Builder) Build() (*Engine, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("authcore: user store is required")
	}

	warn := b.warn
	if warn == nil {
		warn = log.Printf
	}
	for _, w := range b.config.Warnings() {
		warn("authcore: %s", w)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	sessions := b.sessions
	if sessions == nil {
		warn("authcore: no session store configured; using in-memory store, sessions will not survive restarts")
		sessions = session.NewMemoryStore(now)
	}

	hasher := b.hasher
	if hasher == nil {
		argon, err := password.NewArgon2(b.config.Password)
		if err != nil {
			return nil, err
		}
		hasher = argon
	}

	// Hash a throwaway password once so login can verify against it when
	// the handle is unknown, keeping miss and mismatch equally expensive.
	decoy, err := internal.NewSessionToken()
	if err != nil {
		return nil, err
	}
	fakeHash, err := hasher.Hash(decoy)
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Secret:    b.config.JWT.Secret,
		AccessTTL: b.config.JWT.AccessTTL,
		Issuer:    b.config.JWT.Issuer,
		Leeway:    b.config.JWT.Leeway,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	metricsEnabled := b.config.Metrics.Enabled
	if b.metricsForce != nil {
		metricsEnabled = *b.metricsForce
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NoOpSink{}
	}

	return &Engine{
		config:   b.config,
		users:    b.users,
		sessions: sessions,
		hasher:   hasher,
		fakeHash: fakeHash,
		jwt:      jwtManager,
		metrics:  metrics.New(metrics.Config{Enabled: metricsEnabled}),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    b.config.Audit.Enabled,
			BufferSize: b.config.Audit.BufferSize,
			DropIfFull: b.config.Audit.DropIfFull,
		}, sink),
		now:  now,
		warn: warn,
	}, nil
}
