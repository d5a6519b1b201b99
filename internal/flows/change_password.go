package flows

import "context"

// ChangePasswordFailureKind classifies password change failures.
type ChangePasswordFailureKind int

const (
	ChangePasswordFailureNone ChangePasswordFailureKind = iota
	ChangePasswordFailureUserNotFound
	ChangePasswordFailurePassword
	ChangePasswordFailureHash
	ChangePasswordFailureUpdate
	ChangePasswordFailureRevoke
)

// ChangePasswordResult reports the outcome and sessions revoked.
type ChangePasswordResult struct {
	Failure ChangePasswordFailureKind
	Err     error
	Revoked int64
}

// ChangePasswordDeps captures password change dependencies.
type ChangePasswordDeps struct {
	GetUserByID        func(ctx context.Context, userID string) (UserRecord, error)
	VerifyPassword     func(password, encodedHash string) (bool, error)
	HashPassword       func(password string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, passwordHash string) error
	RevokeSessions     func(ctx context.Context, userID string) (int64, error)
}

// RunChangePassword verifies the current password, installs the new hash and
// revokes every session of the user. Callers holding a live access token keep
// it until expiry; only refresh ability is withdrawn here.
func RunChangePassword(ctx context.Context, userID, currentPassword, newPassword string, deps ChangePasswordDeps) ChangePasswordResult {
	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		return ChangePasswordResult{Failure: ChangePasswordFailureUserNotFound, Err: err}
	}

	ok, err := deps.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		return ChangePasswordResult{Failure: ChangePasswordFailurePassword, Err: err}
	}

	newHash, err := deps.HashPassword(newPassword)
	if err != nil {
		return ChangePasswordResult{Failure: ChangePasswordFailureHash, Err: err}
	}

	if err := deps.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return ChangePasswordResult{Failure: ChangePasswordFailureUpdate, Err: err}
	}

	revoked, err := deps.RevokeSessions(ctx, userID)
	if err != nil {
		return ChangePasswordResult{Failure: ChangePasswordFailureRevoke, Err: err}
	}

	return ChangePasswordResult{Revoked: revoked}
}
