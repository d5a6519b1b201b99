package authcore

import (
	"context"
	"io"
	"time"

	"github.com/tradepost/authcore/internal/audit"
	"github.com/tradepost/authcore/internal/metrics"
)

// User is the engine's view of a stored account. PasswordHash is the
// PHC-encoded Argon2id hash; the engine never sees plaintext passwords
// outside the call that carries them.
type User struct {
	ID           string
	Handle       string
	PasswordHash string
	Verified     bool
}

// UserStore is the persistence interface the host application provides for
// accounts. The postgres package ships a ready implementation.
//
// The Consume methods must be atomic: given concurrent calls with the same
// digest, exactly one may succeed. Implementations backed by SQL do this with
// a single conditional UPDATE.
type UserStore interface {
	GetByHandle(ctx context.Context, handle string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// SetResetToken stores a reset token digest, replacing any pending
	// one. Only the SHA-256 digest is ever persisted.
	SetResetToken(ctx context.Context, id string, digest [32]byte, expiresAt time.Time) error

	// ConsumeResetToken redeems a live reset token and installs the new
	// password hash in one atomic step, returning the affected user id.
	// It returns ErrTokenExpired for a recognized but stale token and
	// ErrTokenConsumed for one already redeemed or never issued.
	ConsumeResetToken(ctx context.Context, digest [32]byte, newPasswordHash string, now time.Time) (string, error)

	// SetVerificationToken stores an email verification token digest,
	// replacing any pending one.
	SetVerificationToken(ctx context.Context, id string, digest [32]byte) error

	// ConsumeVerificationToken redeems a verification token, marking the
	// user verified, and returns the affected user id. Unknown or already
	// redeemed digests return ErrTokenConsumed.
	ConsumeVerificationToken(ctx context.Context, digest [32]byte) (string, error)
}

// PasswordHasher abstracts the hash algorithm so tests can substitute a fast
// fake. Production engines use the Argon2id hasher from the password package.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	UserID          string
	AccessToken     string
	AccessExpiresAt time.Time

	// SessionToken is the long-lived opaque token used with Refresh and
	// Logout. It is a bearer secret; transport and storage are the
	// caller's responsibility.
	SessionToken string
}

// RefreshResult is returned by a successful Refresh.
type RefreshResult struct {
	UserID          string
	AccessToken     string
	AccessExpiresAt time.Time
}

// AuthResult is returned by Validate for an accepted access token.
type AuthResult struct {
	UserID string
}

/*
====================================
AUDIT SURFACE
====================================
*/

// Audit types are implemented in internal/audit and re-exported here so
// integrators only import the root package.
type (
	AuditEvent     = audit.Event
	AuditSink      = audit.Sink
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
)

// NewChannelSink returns a sink that buffers events on a channel, for tests
// and in-process consumers.
func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink that writes one JSON object per line.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

/*
====================================
METRICS SURFACE
====================================
*/

// MetricID identifies one engine counter.
type MetricID = metrics.MetricID

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = metrics.Snapshot

const (
	MetricLoginSuccess                = metrics.MetricLoginSuccess
	MetricLoginFailure                = metrics.MetricLoginFailure
	MetricRefreshSuccess              = metrics.MetricRefreshSuccess
	MetricRefreshFailure              = metrics.MetricRefreshFailure
	MetricLogout                      = metrics.MetricLogout
	MetricLogoutAll                   = metrics.MetricLogoutAll
	MetricSessionCreated              = metrics.MetricSessionCreated
	MetricSessionInvalidated          = metrics.MetricSessionInvalidated
	MetricPasswordResetRequest        = metrics.MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess = metrics.MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure = metrics.MetricPasswordResetConfirmFailure
	MetricEmailVerificationRequest    = metrics.MetricEmailVerificationRequest
	MetricEmailVerificationSuccess    = metrics.MetricEmailVerificationSuccess
	MetricEmailVerificationFailure    = metrics.MetricEmailVerificationFailure
	MetricPasswordChangeSuccess       = metrics.MetricPasswordChangeSuccess
	MetricPasswordChangeFailure       = metrics.MetricPasswordChangeFailure
	MetricSweepDeleted                = metrics.MetricSweepDeleted
	MetricIDCount                     = metrics.MetricIDCount
)
