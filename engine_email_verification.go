package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradepost/authcore/internal"
	"github.com/tradepost/authcore/internal/flows"
)

// RequestEmailVerification issues a single-use verification token for the
// user and returns the plaintext token for out-of-band delivery. Repeat
// requests supersede the pending token. Already verified users get
// ErrAlreadyVerified.
func (e *Engine) RequestEmailVerification(ctx context.Context, userID string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	result := flows.RunRequestVerification(ctx, userID, flows.RequestVerificationDeps{
		GetUserByID: func(ctx context.Context, id string) (flows.UserRecord, error) {
			user, err := e.users.GetByID(ctx, id)
			if err != nil {
				return flows.UserRecord{}, err
			}
			return userRecord(user), nil
		},
		NewToken:              internal.NewSingleUseToken,
		SaveVerificationToken: e.users.SetVerificationToken,
	})

	switch result.Failure {
	case flows.VerificationFailureNone:
		e.metricInc(MetricEmailVerificationRequest)
		e.emitAudit(ctx, auditEventEmailVerificationRequest, userID, true, nil, nil)
		return result.Token, nil

	case flows.VerificationFailureUserNotFound:
		if errors.Is(result.Err, ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)

	case flows.VerificationFailureAlreadyVerified:
		return "", ErrAlreadyVerified

	default:
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}
}

// ConfirmEmailVerification redeems a verification token and marks its user
// verified. Unknown and already redeemed tokens get ErrTokenConsumed.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	userID, err := flows.RunConfirmVerification(ctx, token, flows.ConfirmVerificationDeps{
		HashToken:                internal.HashToken,
		ConsumeVerificationToken: e.users.ConsumeVerificationToken,
	})
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, "", false, err, nil)
		if errors.Is(err, ErrTokenConsumed) {
			return ErrTokenConsumed
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, userID, true, nil, nil)
	return nil
}
