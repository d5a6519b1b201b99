package authcore

import (
	"errors"

	"github.com/tradepost/authcore/jwt"
)

var (
	// ErrInvalidCredentials covers every way a login or refresh can fail
	// for reasons the caller should not be able to tell apart: unknown
	// handle, wrong password, unknown or expired session token.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned by user stores and by operations keyed
	// on a user id the store does not know.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenConsumed is returned when a single-use token was already
	// redeemed, superseded, or never issued.
	ErrTokenConsumed = errors.New("token already consumed or unknown")

	// ErrTokenExpired is returned when a single-use token is recognized
	// but past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrAlreadyVerified is returned when verification is requested for a
	// user whose email is already verified.
	ErrAlreadyVerified = errors.New("account already verified")

	// ErrSessionLimitExceeded is returned by Login when the user already
	// holds the configured maximum of concurrent sessions.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")

	// ErrStoreUnavailable wraps backend failures from the user or session
	// store.
	ErrStoreUnavailable = errors.New("storage backend unavailable")

	// ErrEngineNotReady is returned when an Engine method is called on a
	// nil or incompletely built engine.
	ErrEngineNotReady = errors.New("engine not ready")
)

// ErrSecretMissing is returned by Build when no signing secret is
// configured. Re-exported from the jwt package so callers can match it
// without importing both.
var ErrSecretMissing = jwt.ErrSecretMissing
