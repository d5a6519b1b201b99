package flows

import (
	"context"
	"time"
)

// RequestResetDeps captures reset request dependencies.
type RequestResetDeps struct {
	GetUserByHandle func(ctx context.Context, handle string) (UserRecord, error)
	NewToken        func() (token string, digest [32]byte, err error)
	SaveResetToken  func(ctx context.Context, userID string, digest [32]byte, expiresAt time.Time) error
	ResetTTL        time.Duration
	Now             func() time.Time
	IsNotFound      func(err error) bool
}

// RequestResetResult reports the issued token. Known is false when the handle
// did not match a user; the token is then a decoy that redeems nothing.
type RequestResetResult struct {
	Token  string
	UserID string
	Known  bool
	Err    error
}

// RunRequestReset issues a single-use reset token for the handle's user.
// Requesting again before redemption supersedes the earlier token. A token is
// generated even for unknown handles so the response shape and cost never
// reveal whether an account exists.
func RunRequestReset(ctx context.Context, handle string, deps RequestResetDeps) RequestResetResult {
	token, digest, err := deps.NewToken()
	if err != nil {
		return RequestResetResult{Err: err}
	}

	user, err := deps.GetUserByHandle(ctx, handle)
	if err != nil {
		if !deps.IsNotFound(err) {
			// Only the handle-exists question is masked. A store outage
			// must surface, or the caller believes a token was issued
			// that was never saved.
			return RequestResetResult{Err: err}
		}
		return RequestResetResult{Token: token}
	}

	expiresAt := deps.Now().Add(deps.ResetTTL)
	if err := deps.SaveResetToken(ctx, user.ID, digest, expiresAt); err != nil {
		return RequestResetResult{Err: err}
	}

	return RequestResetResult{Token: token, UserID: user.ID, Known: true}
}

// ConfirmResetFailureKind classifies reset confirmation failures.
type ConfirmResetFailureKind int

const (
	ConfirmResetFailureNone ConfirmResetFailureKind = iota
	ConfirmResetFailureHashPassword
	ConfirmResetFailureConsume
	ConfirmResetFailureRevoke
)

// ConfirmResetResult carries the affected user or failure metadata.
type ConfirmResetResult struct {
	Failure ConfirmResetFailureKind
	Err     error
	UserID  string
	Revoked int64
}

// ConfirmResetDeps captures reset confirmation dependencies.
type ConfirmResetDeps struct {
	HashToken         func(token string) [32]byte
	HashPassword      func(password string) (string, error)
	ConsumeResetToken func(ctx context.Context, digest [32]byte, newPasswordHash string, now time.Time) (userID string, err error)
	RevokeSessions    func(ctx context.Context, userID string) (int64, error)
	Now               func() time.Time
}

// RunConfirmReset redeems a reset token, installing the new password and
// revoking every session of the affected user. Redemption is a single
// conditional store update, so only one of any number of concurrent attempts
// with the same token can succeed.
func RunConfirmReset(ctx context.Context, token, newPassword string, deps ConfirmResetDeps) ConfirmResetResult {
	newHash, err := deps.HashPassword(newPassword)
	if err != nil {
		return ConfirmResetResult{Failure: ConfirmResetFailureHashPassword, Err: err}
	}

	userID, err := deps.ConsumeResetToken(ctx, deps.HashToken(token), newHash, deps.Now())
	if err != nil {
		return ConfirmResetResult{Failure: ConfirmResetFailureConsume, Err: err}
	}

	revoked, err := deps.RevokeSessions(ctx, userID)
	if err != nil {
		return ConfirmResetResult{Failure: ConfirmResetFailureRevoke, Err: err, UserID: userID}
	}

	return ConfirmResetResult{UserID: userID, Revoked: revoked}
}
