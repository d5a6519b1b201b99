package authcore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tradepost/authcore"
)

func TestEmailVerificationRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	token, err := f.engine.RequestEmailVerification(ctx, "user-1")
	if err != nil {
		t.Fatalf("RequestEmailVerification error: %v", err)
	}
	if token == "" {
		t.Fatal("empty verification token")
	}

	if err := f.engine.ConfirmEmailVerification(ctx, token); err != nil {
		t.Fatalf("ConfirmEmailVerification error: %v", err)
	}

	user, err := f.users.GetByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if !user.Verified {
		t.Fatal("user not marked verified")
	}
}

func TestEmailVerificationTokenIsSingleUse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	token, err := f.engine.RequestEmailVerification(ctx, "user-1")
	if err != nil {
		t.Fatalf("RequestEmailVerification error: %v", err)
	}
	if err := f.engine.ConfirmEmailVerification(ctx, token); err != nil {
		t.Fatalf("ConfirmEmailVerification error: %v", err)
	}
	if err := f.engine.ConfirmEmailVerification(ctx, token); !errors.Is(err, authcore.ErrTokenConsumed) {
		t.Fatalf("second redemption = %v, want ErrTokenConsumed", err)
	}
}

func TestEmailVerificationSupersedes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.engine.RequestEmailVerification(ctx, "user-1")
	if err != nil {
		t.Fatalf("RequestEmailVerification error: %v", err)
	}
	second, err := f.engine.RequestEmailVerification(ctx, "user-1")
	if err != nil {
		t.Fatalf("second RequestEmailVerification error: %v", err)
	}

	if err := f.engine.ConfirmEmailVerification(ctx, first); !errors.Is(err, authcore.ErrTokenConsumed) {
		t.Fatalf("superseded token = %v, want ErrTokenConsumed", err)
	}
	if err := f.engine.ConfirmEmailVerification(ctx, second); err != nil {
		t.Fatalf("current token redemption: %v", err)
	}
}

func TestEmailVerificationAlreadyVerified(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	token, err := f.engine.RequestEmailVerification(ctx, "user-1")
	if err != nil {
		t.Fatalf("RequestEmailVerification error: %v", err)
	}
	if err := f.engine.ConfirmEmailVerification(ctx, token); err != nil {
		t.Fatalf("ConfirmEmailVerification error: %v", err)
	}

	if _, err := f.engine.RequestEmailVerification(ctx, "user-1"); !errors.Is(err, authcore.ErrAlreadyVerified) {
		t.Fatalf("request for verified user = %v, want ErrAlreadyVerified", err)
	}
}

func TestEmailVerificationUnknownUser(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.engine.RequestEmailVerification(context.Background(), "ghost"); !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("request for unknown user = %v, want ErrUserNotFound", err)
	}
}
