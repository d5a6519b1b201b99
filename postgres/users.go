package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradepost/authcore"
)

// UserStore is an authcore.UserStore backed by the users table.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a UserStore.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser inserts a new unverified user and returns its generated id.
func (s *UserStore) CreateUser(ctx context.Context, handle, passwordHash string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, handle, password_hash) VALUES ($1, $2, $3)`,
		id, handle, passwordHash)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (s *UserStore) GetByHandle(ctx context.Context, handle string) (*authcore.User, error) {
	return s.getUser(ctx,
		`SELECT id, handle, password_hash, verified FROM users WHERE handle = $1`, handle)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*authcore.User, error) {
	return s.getUser(ctx,
		`SELECT id, handle, password_hash, verified FROM users WHERE id = $1`, id)
}

func (s *UserStore) getUser(ctx context.Context, query, arg string) (*authcore.User, error) {
	user := &authcore.User{}
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Handle, &user.PasswordHash, &user.Verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireOneRow(res, authcore.ErrUserNotFound)
}

// SetResetToken records a pending reset token digest, replacing any digest
// already stored for the user.
func (s *UserStore) SetResetToken(ctx context.Context, id string, tokenHash [32]byte, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = $2, reset_token_expires_at = $3 WHERE id = $1`,
		id, tokenHash[:], expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return requireOneRow(res, authcore.ErrUserNotFound)
}

// ConsumeResetToken atomically redeems a live reset token: the password is
// replaced and the token cleared in one statement, so two concurrent redeem
// attempts cannot both succeed. Returns the id of the affected user.
func (s *UserStore) ConsumeResetToken(ctx context.Context, tokenHash [32]byte, newPasswordHash string, now time.Time) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`UPDATE users
		 SET password_hash = $2, reset_token_hash = NULL, reset_token_expires_at = NULL
		 WHERE reset_token_hash = $1 AND reset_token_expires_at > $3
		 RETURNING id`,
		tokenHash[:], newPasswordHash, now).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("consume reset token: %w", err)
	}

	// The update matched nothing. Distinguish a token that exists but has
	// expired from one that was never issued or already redeemed.
	var exists bool
	checkErr := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE reset_token_hash = $1)`,
		tokenHash[:]).Scan(&exists)
	if checkErr != nil {
		return "", fmt.Errorf("consume reset token: %w", checkErr)
	}
	if exists {
		return "", authcore.ErrTokenExpired
	}
	return "", authcore.ErrTokenConsumed
}

// SetVerificationToken records a pending email verification token digest.
func (s *UserStore) SetVerificationToken(ctx context.Context, id string, tokenHash [32]byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET verification_token_hash = $2 WHERE id = $1`,
		id, tokenHash[:])
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	return requireOneRow(res, authcore.ErrUserNotFound)
}

// ConsumeVerificationToken atomically redeems a verification token, marking
// the user verified. Returns the id of the affected user.
func (s *UserStore) ConsumeVerificationToken(ctx context.Context, tokenHash [32]byte) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`UPDATE users
		 SET verified = TRUE, verification_token_hash = NULL
		 WHERE verification_token_hash = $1
		 RETURNING id`,
		tokenHash[:]).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", authcore.ErrTokenConsumed
		}
		return "", fmt.Errorf("consume verification token: %w", err)
	}
	return id, nil
}

func requireOneRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
