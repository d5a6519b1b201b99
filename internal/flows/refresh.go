package flows

import (
	"context"
	"time"

	"github.com/tradepost/authcore/session"
)

// RefreshFailureKind classifies refresh failures for root-level error mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureSessionNotFound
	RefreshFailureSessionExpired
	RefreshFailureMint
	RefreshFailureStore
)

// RefreshResult carries either the minted access token or failure metadata.
type RefreshResult struct {
	Failure         RefreshFailureKind
	Err             error
	UserID          string
	AccessToken     string
	AccessExpiresAt time.Time
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	FindSession   func(ctx context.Context, token string) (*session.Session, error)
	DeleteSession func(ctx context.Context, token string) (int64, error)
	MintAccess    func(userID string) (token string, expiresAt time.Time, err error)
	Now           func() time.Time
	IsNotFound    func(err error) bool
}

// RunRefresh looks up the presented session token and mints a fresh access
// token for its user. A session is unusable from its expiry instant onward;
// expired rows found here are deleted eagerly rather than left for the
// sweeper.
func RunRefresh(ctx context.Context, sessionToken string, deps RefreshDeps) RefreshResult {
	sess, err := deps.FindSession(ctx, sessionToken)
	if err != nil {
		if deps.IsNotFound(err) {
			return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err}
	}

	if sess.ExpiredAt(deps.Now()) {
		if _, delErr := deps.DeleteSession(ctx, sessionToken); delErr != nil {
			// The row will fall to the sweeper; the refresh still fails.
			return RefreshResult{Failure: RefreshFailureSessionExpired, Err: delErr, UserID: sess.UserID}
		}
		return RefreshResult{Failure: RefreshFailureSessionExpired, UserID: sess.UserID}
	}

	accessToken, accessExpiresAt, err := deps.MintAccess(sess.UserID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureMint, Err: err, UserID: sess.UserID}
	}

	return RefreshResult{
		UserID:          sess.UserID,
		AccessToken:     accessToken,
		AccessExpiresAt: accessExpiresAt,
	}
}
