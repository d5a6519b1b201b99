package flows

import (
	"context"
	"time"
)

// UserRecord is the flow-local view of a stored user.
type UserRecord struct {
	ID           string
	Handle       string
	PasswordHash string
	Verified     bool
}

// LoginFailureKind classifies login failures for root-level error mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureUserNotFound
	LoginFailurePassword
	LoginFailureSessionLimit
	LoginFailureMint
	LoginFailureStore
)

// LoginResult carries either the issued credentials or failure metadata.
type LoginResult struct {
	Failure         LoginFailureKind
	Err             error
	UserID          string
	AccessToken     string
	AccessExpiresAt time.Time
	SessionToken    string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	GetUserByHandle func(ctx context.Context, handle string) (UserRecord, error)
	VerifyPassword  func(password, encodedHash string) (bool, error)

	// FakeHash is verified against when the handle is unknown, so a miss
	// costs the same as a wrong password.
	FakeHash string

	MintAccess    func(userID string) (token string, expiresAt time.Time, err error)
	CreateSession func(ctx context.Context, userID string, expiresAt time.Time) (string, error)
	CountSessions func(ctx context.Context, userID string) (int64, error)

	// MaxSessionsPerUser caps concurrent sessions when positive. Zero
	// disables the cap and skips the count entirely.
	MaxSessionsPerUser int

	SessionTTL time.Duration
	Now        func() time.Time
	IsNotFound func(err error) bool
}

// RunLogin verifies credentials and, on success, creates a session and mints
// an access token. Unknown handle and wrong password produce distinct failure
// kinds here; collapsing them into one public error is the caller's job.
func RunLogin(ctx context.Context, handle, password string, deps LoginDeps) LoginResult {
	user, err := deps.GetUserByHandle(ctx, handle)
	if err != nil {
		if !deps.IsNotFound(err) {
			// A lookup that failed for infrastructure reasons is not a
			// credentials miss and must never read like one.
			return LoginResult{Failure: LoginFailureStore, Err: err}
		}
		// Burn a hash verification anyway. Without this an attacker can
		// use response timing to probe which handles exist.
		_, _ = deps.VerifyPassword(password, deps.FakeHash)
		return LoginResult{Failure: LoginFailureUserNotFound, Err: err}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{Failure: LoginFailurePassword, Err: err, UserID: user.ID}
	}

	if deps.MaxSessionsPerUser > 0 {
		count, err := deps.CountSessions(ctx, user.ID)
		if err != nil {
			return LoginResult{Failure: LoginFailureStore, Err: err, UserID: user.ID}
		}
		if count >= int64(deps.MaxSessionsPerUser) {
			return LoginResult{Failure: LoginFailureSessionLimit, UserID: user.ID}
		}
	}

	// Mint before touching the store so a signing failure never leaves an
	// orphaned session row behind.
	accessToken, accessExpiresAt, err := deps.MintAccess(user.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureMint, Err: err, UserID: user.ID}
	}

	sessionToken, err := deps.CreateSession(ctx, user.ID, deps.Now().Add(deps.SessionTTL))
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, UserID: user.ID}
	}

	return LoginResult{
		UserID:          user.ID,
		AccessToken:     accessToken,
		AccessExpiresAt: accessExpiresAt,
		SessionToken:    sessionToken,
	}
}
