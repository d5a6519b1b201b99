package session

import (
	"context"
	"sync"
	"time"

	"github.com/tradepost/authcore/internal"
)

// MemoryStore is a map-backed Store for tests, examples, and single-process
// deployments that can tolerate losing sessions on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	byUser   map[string]map[string]struct{}
	now      func() time.Time
}

// NewMemoryStore creates a MemoryStore. now may be nil, in which case
// time.Now is used.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions: make(map[string]Session),
		byUser:   make(map[string]map[string]struct{}),
		now:      now,
	}
}

func (s *MemoryStore) Create(_ context.Context, userID string, expiresAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		token, err := internal.NewSessionToken()
		if err != nil {
			return "", err
		}
		if _, exists := s.sessions[token]; exists {
			continue
		}

		s.sessions[token] = Session{
			Token:     token,
			UserID:    userID,
			CreatedAt: s.now(),
			ExpiresAt: expiresAt,
		}
		if s.byUser[userID] == nil {
			s.byUser[userID] = make(map[string]struct{})
		}
		s.byUser[userID][token] = struct{}{}
		return token, nil
	}

	return "", ErrTokenCollision
}

func (s *MemoryStore) FindByToken(_ context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	out := sess
	return &out, nil
}

func (s *MemoryStore) DeleteByToken(_ context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteLocked(token), nil
}

func (s *MemoryStore) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for token := range s.byUser[userID] {
		deleted += s.deleteLocked(token)
	}
	return deleted, nil
}

func (s *MemoryStore) CountActiveForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var count int64
	for token := range s.byUser[userID] {
		if sess, ok := s.sessions[token]; ok && now.Before(sess.ExpiresAt) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) SweepExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var deleted int64
	for token, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			deleted += s.deleteLocked(token)
		}
	}
	return deleted, nil
}

func (s *MemoryStore) deleteLocked(token string) int64 {
	sess, ok := s.sessions[token]
	if !ok {
		return 0
	}
	delete(s.sessions, token)
	if tokens := s.byUser[sess.UserID]; tokens != nil {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(s.byUser, sess.UserID)
		}
	}
	return 1
}
