package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradepost/authcore/internal/flows"
)

// ChangePassword verifies currentPassword, installs newPassword and revokes
// every session of the user. Returns how many sessions were revoked. Access
// tokens already in the wild stay valid until they expire; only refresh
// ability is withdrawn immediately.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	result := flows.RunChangePassword(ctx, userID, currentPassword, newPassword, flows.ChangePasswordDeps{
		GetUserByID: func(ctx context.Context, id string) (flows.UserRecord, error) {
			user, err := e.users.GetByID(ctx, id)
			if err != nil {
				return flows.UserRecord{}, err
			}
			return userRecord(user), nil
		},
		VerifyPassword:     e.hasher.Verify,
		HashPassword:       e.hasher.Hash,
		UpdatePasswordHash: e.users.UpdatePasswordHash,
		RevokeSessions:     e.sessions.DeleteAllForUser,
	})

	switch result.Failure {
	case flows.ChangePasswordFailureNone:
		e.metricInc(MetricPasswordChangeSuccess)
		e.emitAudit(ctx, auditEventPasswordChange, userID, true, nil,
			map[string]string{"sessions_revoked": fmt.Sprintf("%d", result.Revoked)})
		return result.Revoked, nil

	case flows.ChangePasswordFailureUserNotFound:
		e.metricInc(MetricPasswordChangeFailure)
		if errors.Is(result.Err, ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)

	case flows.ChangePasswordFailurePassword:
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, userID, false, ErrInvalidCredentials, nil)
		return 0, ErrInvalidCredentials

	default:
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, userID, false, result.Err, nil)
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}
}
