package flows

import "context"

// RequestVerificationDeps captures verification request dependencies.
type RequestVerificationDeps struct {
	GetUserByID           func(ctx context.Context, userID string) (UserRecord, error)
	NewToken              func() (token string, digest [32]byte, err error)
	SaveVerificationToken func(ctx context.Context, userID string, digest [32]byte) error
}

// VerificationFailureKind classifies verification failures.
type VerificationFailureKind int

const (
	VerificationFailureNone VerificationFailureKind = iota
	VerificationFailureUserNotFound
	VerificationFailureAlreadyVerified
	VerificationFailureToken
	VerificationFailureStore
)

// RequestVerificationResult carries the issued token or failure metadata.
type RequestVerificationResult struct {
	Failure VerificationFailureKind
	Err     error
	Token   string
}

// RunRequestVerification issues a single-use email verification token. A
// repeat request supersedes any token still pending.
func RunRequestVerification(ctx context.Context, userID string, deps RequestVerificationDeps) RequestVerificationResult {
	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		return RequestVerificationResult{Failure: VerificationFailureUserNotFound, Err: err}
	}
	if user.Verified {
		return RequestVerificationResult{Failure: VerificationFailureAlreadyVerified}
	}

	token, digest, err := deps.NewToken()
	if err != nil {
		return RequestVerificationResult{Failure: VerificationFailureToken, Err: err}
	}

	if err := deps.SaveVerificationToken(ctx, userID, digest); err != nil {
		return RequestVerificationResult{Failure: VerificationFailureStore, Err: err}
	}

	return RequestVerificationResult{Token: token}
}

// ConfirmVerificationDeps captures verification confirmation dependencies.
type ConfirmVerificationDeps struct {
	HashToken                func(token string) [32]byte
	ConsumeVerificationToken func(ctx context.Context, digest [32]byte) (userID string, err error)
}

// RunConfirmVerification redeems a verification token, marking its user
// verified. Redemption is a single conditional store update.
func RunConfirmVerification(ctx context.Context, token string, deps ConfirmVerificationDeps) (string, error) {
	return deps.ConsumeVerificationToken(ctx, deps.HashToken(token))
}
