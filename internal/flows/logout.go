package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	DeleteSession     func(ctx context.Context, token string) (int64, error)
	DeleteAllSessions func(ctx context.Context, userID string) (int64, error)
}

// RunLogout removes one session. Returns the number of sessions removed;
// zero means the token was already gone, which is not an error.
func RunLogout(ctx context.Context, sessionToken string, deps LogoutDeps) (int64, error) {
	return deps.DeleteSession(ctx, sessionToken)
}

// RunLogoutAll removes every session belonging to a user.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int64, error) {
	return deps.DeleteAllSessions(ctx, userID)
}
