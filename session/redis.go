package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradepost/authcore/internal"
)

// RedisStore is a Redis-backed Store. Key TTLs enforce row expiry natively,
// so SweepExpired only has to prune stale entries from the per-user index
// sets. It is a drop-in alternative to the relational baseline for
// deployments that already run Redis.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a RedisStore. prefix namespaces all keys; now may be
// nil, in which case time.Now is used.
func NewRedisStore(client redis.UniversalClient, prefix string, now func() time.Time) *RedisStore {
	if prefix == "" {
		prefix = "ac"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{redis: client, prefix: prefix, now: now}
}

func (s *RedisStore) sessionKey(token string) string {
	return s.prefix + ":s:" + token
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *RedisStore) Create(ctx context.Context, userID string, expiresAt time.Time) (string, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return "", fmt.Errorf("session expiry not in the future")
	}

	sess := Session{UserID: userID, CreatedAt: s.now(), ExpiresAt: expiresAt}
	data, err := encode(&sess)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		token, err := internal.NewSessionToken()
		if err != nil {
			return "", err
		}

		stored, err := s.redis.SetNX(ctx, s.sessionKey(token), data, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if !stored {
			continue
		}

		if err := s.redis.SAdd(ctx, s.userKey(userID), token).Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return token, nil
	}

	return "", ErrTokenCollision
}

func (s *RedisStore) FindByToken(ctx context.Context, token string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess := &Session{Token: token}
	if err := decode(data, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *RedisStore) DeleteByToken(ctx context.Context, token string) (int64, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess := Session{Token: token}
	if err := decode(data, &sess); err != nil {
		return 0, err
	}

	var delCmd *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, s.sessionKey(token))
		pipe.SRem(ctx, s.userKey(sess.UserID), token)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return delCmd.Val(), nil
}

func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	userKey := s.userKey(userID)
	tokens, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokens))
	members := make([]interface{}, 0, len(tokens))
	for _, token := range tokens {
		keys = append(keys, s.sessionKey(token))
		members = append(members, token)
	}

	// Remove only the enumerated tokens from the index. Dropping the whole
	// set would also erase entries for sessions created between the
	// SMembers read and this pipeline, leaving them live but untracked.
	var delCmd *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, userKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return delCmd.Val(), nil
}

func (s *RedisStore) CountActiveForUser(ctx context.Context, userID string) (int64, error) {
	live, err := s.pruneUserIndex(ctx, userID)
	if err != nil {
		return 0, err
	}
	return live, nil
}

// SweepExpired prunes index entries whose session keys already expired via
// TTL. Redis reclaims the session values itself; only the per-user sets need
// maintenance.
func (s *RedisStore) SweepExpired(ctx context.Context) (int64, error) {
	pattern := s.prefix + ":u:*"
	var (
		cursor uint64
		pruned int64
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return pruned, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for _, userKey := range keys {
			removed, err := s.pruneIndexKey(ctx, userKey)
			if err != nil {
				return pruned, err
			}
			pruned += removed
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return pruned, nil
}

// pruneUserIndex drops stale tokens from one user's index set and returns the
// number of live sessions left.
func (s *RedisStore) pruneUserIndex(ctx context.Context, userID string) (int64, error) {
	userKey := s.userKey(userID)
	live, err := s.pruneIndexKeyCounting(ctx, userKey)
	if err != nil {
		return 0, err
	}
	return live, nil
}

func (s *RedisStore) pruneIndexKey(ctx context.Context, userKey string) (int64, error) {
	tokens, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var removed int64
	for _, token := range tokens {
		exists, err := s.redis.Exists(ctx, s.sessionKey(token)).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if exists == 0 {
			if err := s.redis.SRem(ctx, userKey, token).Err(); err != nil {
				return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			removed++
		}
	}
	return removed, nil
}

func (s *RedisStore) pruneIndexKeyCounting(ctx context.Context, userKey string) (int64, error) {
	tokens, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var live int64
	for _, token := range tokens {
		exists, err := s.redis.Exists(ctx, s.sessionKey(token)).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if exists == 0 {
			if err := s.redis.SRem(ctx, userKey, token).Err(); err != nil {
				return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			continue
		}
		live++
	}
	return live, nil
}
