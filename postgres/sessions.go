package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tradepost/authcore/internal"
	"github.com/tradepost/authcore/session"
)

// SessionStore is a session.Store backed by the sessions table.
type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionStore creates a SessionStore. now may be nil, in which case
// time.Now is used.
func NewSessionStore(db *sql.DB, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{db: db, now: now}
}

func (s *SessionStore) Create(ctx context.Context, userID string, expiresAt time.Time) (string, error) {
	const maxAttempts = 3

	for attempt := 0; attempt < maxAttempts; attempt++ {
		token, err := internal.NewSessionToken()
		if err != nil {
			return "", err
		}

		res, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (token, user_id, created_at, expires_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (token) DO NOTHING`,
			token, userID, s.now(), expiresAt)
		if err != nil {
			return "", fmt.Errorf("%w: %v", session.ErrUnavailable, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("%w: %v", session.ErrUnavailable, err)
		}
		if affected == 1 {
			return token, nil
		}
	}

	return "", session.ErrTokenCollision
}

func (s *SessionStore) FindByToken(ctx context.Context, token string) (*session.Session, error) {
	sess := &session.Session{Token: token}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, created_at, expires_at FROM sessions WHERE token = $1`,
		token).Scan(&sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return sess, nil
}

func (s *SessionStore) DeleteByToken(ctx context.Context, token string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return rowsAffected(res)
}

func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return rowsAffected(res)
}

func (s *SessionStore) CountActiveForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sessions WHERE user_id = $1 AND expires_at > $2`,
		userID, s.now()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return count, nil
}

func (s *SessionStore) SweepExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return rowsAffected(res)
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return n, nil
}
