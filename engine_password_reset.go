package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradepost/authcore/internal"
	"github.com/tradepost/authcore/internal/flows"
)

// RequestPasswordReset issues a single-use reset token for the account behind
// handle and returns the plaintext token for out-of-band delivery. Only its
// SHA-256 digest is stored. Requesting again supersedes the pending token.
//
// An unknown handle still returns a token. It redeems nothing, but the caller
// cannot tell it from a real one, so this method never confirms whether an
// account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, handle string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	result := flows.RunRequestReset(ctx, handle, flows.RequestResetDeps{
		GetUserByHandle: func(ctx context.Context, handle string) (flows.UserRecord, error) {
			user, err := e.users.GetByHandle(ctx, handle)
			if err != nil {
				return flows.UserRecord{}, err
			}
			return userRecord(user), nil
		},
		NewToken:       internal.NewSingleUseToken,
		SaveResetToken: e.users.SetResetToken,
		ResetTTL:       e.config.PasswordReset.TokenTTL,
		Now:            e.now,
		IsNotFound: func(err error) bool {
			return errors.Is(err, ErrUserNotFound)
		},
	})

	if result.Err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}

	e.metricInc(MetricPasswordResetRequest)
	if result.Known {
		e.emitAudit(ctx, auditEventPasswordResetRequest, result.UserID, true, nil, nil)
	}
	return result.Token, nil
}

// ConfirmPasswordReset redeems a reset token, installing newPassword and
// revoking every session of the affected user. A token redeems at most once:
// concurrent attempts race for a single conditional store update and the
// losers get ErrTokenConsumed.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	result := flows.RunConfirmReset(ctx, token, newPassword, flows.ConfirmResetDeps{
		HashToken:         internal.HashToken,
		HashPassword:      e.hasher.Hash,
		ConsumeResetToken: e.users.ConsumeResetToken,
		RevokeSessions:    e.sessions.DeleteAllForUser,
		Now:               e.now,
	})

	switch result.Failure {
	case flows.ConfirmResetFailureNone:
		e.metricInc(MetricPasswordResetConfirmSuccess)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, result.UserID, true, nil,
			map[string]string{"sessions_revoked": fmt.Sprintf("%d", result.Revoked)})
		return nil

	case flows.ConfirmResetFailureConsume:
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, "", false, result.Err, nil)
		if errors.Is(result.Err, ErrTokenExpired) || errors.Is(result.Err, ErrTokenConsumed) {
			return result.Err
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)

	case flows.ConfirmResetFailureRevoke:
		// The password already changed; report the revocation failure
		// rather than pretending the whole operation failed cleanly.
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, result.UserID, false, result.Err, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)

	default:
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, "", false, result.Err, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}
}
