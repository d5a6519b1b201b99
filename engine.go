package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradepost/authcore/internal/audit"
	"github.com/tradepost/authcore/internal/flows"
	"github.com/tradepost/authcore/internal/metrics"
	"github.com/tradepost/authcore/jwt"
	"github.com/tradepost/authcore/session"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshFailure           = "refresh_failure"
	auditEventLogoutSession            = "logout_session"
	auditEventLogoutAll                = "logout_all"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventPasswordChange           = "password_change"
)

// Engine is the façade over the authentication flows. Construct it with a
// Builder; the zero value is not usable. All methods are safe for concurrent
// use.
type Engine struct {
	config   Config
	users    UserStore
	sessions session.Store
	hasher   PasswordHasher
	fakeHash string
	jwt      *jwt.Manager
	metrics  *metrics.Metrics
	audit    *audit.Dispatcher
	now      func() time.Time
	warn     func(format string, args ...any)
}

// Close flushes and stops the audit dispatcher. Call it once when shutting
// down; other methods must not be called afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID string, success bool, failure error, meta map[string]string) {
	event := audit.Event{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  meta,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	e.audit.Emit(ctx, event)
}

/*
====================================
LOGIN
====================================
*/

// Login verifies the handle and password and, on success, opens a session
// and mints an access token. Unknown handles and wrong passwords both return
// ErrInvalidCredentials with indistinguishable timing.
func (e *Engine) Login(ctx context.Context, handle, password string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	result := flows.RunLogin(ctx, handle, password, flows.LoginDeps{
		GetUserByHandle: func(ctx context.Context, handle string) (flows.UserRecord, error) {
			user, err := e.users.GetByHandle(ctx, handle)
			if err != nil {
				return flows.UserRecord{}, err
			}
			return userRecord(user), nil
		},
		VerifyPassword:     e.hasher.Verify,
		FakeHash:           e.fakeHash,
		MintAccess:         e.jwt.CreateAccess,
		CreateSession:      e.sessions.Create,
		CountSessions:      e.sessions.CountActiveForUser,
		MaxSessionsPerUser: e.config.Session.MaxSessionsPerUser,
		SessionTTL:         e.config.Session.TTL,
		Now:                e.now,
		IsNotFound: func(err error) bool {
			return errors.Is(err, ErrUserNotFound)
		},
	})

	switch result.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricSessionCreated)
		e.emitAudit(ctx, auditEventLoginSuccess, result.UserID, true, nil, nil)
		return &LoginResult{
			UserID:          result.UserID,
			AccessToken:     result.AccessToken,
			AccessExpiresAt: result.AccessExpiresAt,
			SessionToken:    result.SessionToken,
		}, nil

	case flows.LoginFailureUserNotFound, flows.LoginFailurePassword:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, result.UserID, false, ErrInvalidCredentials,
			map[string]string{"handle": handle})
		return nil, ErrInvalidCredentials

	case flows.LoginFailureSessionLimit:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, result.UserID, false, ErrSessionLimitExceeded, nil)
		return nil, ErrSessionLimitExceeded

	case flows.LoginFailureMint:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, result.UserID, false, result.Err, nil)
		if errors.Is(result.Err, ErrSecretMissing) {
			return nil, result.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)

	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, result.UserID, false, result.Err, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}
}

/*
====================================
REFRESH
====================================
*/

// Refresh exchanges a live session token for a fresh access token. The
// session row is the source of truth: a token whose session was revoked or
// has reached its expiry instant returns ErrInvalidCredentials.
func (e *Engine) Refresh(ctx context.Context, sessionToken string) (*RefreshResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	result := flows.RunRefresh(ctx, sessionToken, flows.RefreshDeps{
		FindSession:   e.sessions.FindByToken,
		DeleteSession: e.sessions.DeleteByToken,
		MintAccess:    e.jwt.CreateAccess,
		Now:           e.now,
		IsNotFound: func(err error) bool {
			return errors.Is(err, session.ErrNotFound)
		},
	})

	switch result.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, result.UserID, true, nil, nil)
		return &RefreshResult{
			UserID:          result.UserID,
			AccessToken:     result.AccessToken,
			AccessExpiresAt: result.AccessExpiresAt,
		}, nil

	case flows.RefreshFailureSessionNotFound, flows.RefreshFailureSessionExpired:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, result.UserID, false, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials

	case flows.RefreshFailureMint:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, result.UserID, false, result.Err, nil)
		if errors.Is(result.Err, ErrSecretMissing) {
			return nil, result.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)

	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, result.UserID, false, result.Err, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}
}

/*
====================================
LOGOUT
====================================
*/

// Logout revokes one session. Revoking a token that is already gone is a
// no-op, not an error, so retries and double-clicks stay harmless.
func (e *Engine) Logout(ctx context.Context, sessionToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	removed, err := flows.RunLogout(ctx, sessionToken, e.logoutDeps())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if removed > 0 {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, auditEventLogoutSession, "", true, nil, nil)
	}
	return nil
}

// LogoutAll revokes every session of a user and returns how many were
// removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := flows.RunLogoutAll(ctx, userID, e.logoutDeps())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricLogoutAll)
	if removed > 0 {
		e.emitAudit(ctx, auditEventLogoutAll, userID, true, nil,
			map[string]string{"sessions_revoked": fmt.Sprintf("%d", removed)})
	}
	return removed, nil
}

func (e *Engine) logoutDeps() flows.LogoutDeps {
	return flows.LogoutDeps{
		DeleteSession:     e.sessions.DeleteByToken,
		DeleteAllSessions: e.sessions.DeleteAllForUser,
	}
}

// SessionCount reports the user's live sessions.
func (e *Engine) SessionCount(ctx context.Context, userID string) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	count, err := e.sessions.CountActiveForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

/*
====================================
SWEEP
====================================
*/

// SweepExpiredSessions deletes all session rows past expiry in one pass and
// reports the count. Intended for a background schedule, never the request
// path; SessionSweeper wraps it in a ticker loop.
func (e *Engine) SweepExpiredSessions(ctx context.Context) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	deleted, err := e.sessions.SweepExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if deleted > 0 {
		e.metrics.Add(MetricSweepDeleted, uint64(deleted))
	}
	return deleted, nil
}

// SessionSweeper returns a sweeper over the engine's session store, running
// at the configured interval with the sweep counter already attached. The
// caller owns the goroutine:
//
//	go engine.SessionSweeper().Run(ctx)
func (e *Engine) SessionSweeper() *session.Sweeper {
	sw := session.NewSweeper(e.sessions, e.config.Session.SweepInterval)
	sw.OnSweep = func(deleted int64) {
		if deleted > 0 {
			e.metrics.Add(MetricSweepDeleted, uint64(deleted))
		}
	}
	return sw
}

/*
====================================
VALIDATE
====================================
*/

// Validate checks an access token without touching any store. It accepts a
// token up to, but not including, its expiry instant.
func (e *Engine) Validate(_ context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	uid, err := e.jwt.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return &AuthResult{UserID: uid}, nil
}

func userRecord(user *User) flows.UserRecord {
	return flows.UserRecord{
		ID:           user.ID,
		Handle:       user.Handle,
		PasswordHash: user.PasswordHash,
		Verified:     user.Verified,
	}
}
