// Package session defines the server-side session store contract and its
// in-memory and Redis-backed implementations. The relational implementation
// lives in the postgres package.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindByToken for unknown tokens.
var ErrNotFound = errors.New("session not found")

// ErrUnavailable wraps storage-layer failures (connectivity, timeouts). It is
// the retryable infrastructure class, distinct from "looked up and absent".
var ErrUnavailable = errors.New("session store unavailable")

// ErrTokenCollision is returned by Create after exhausting regeneration
// attempts for a colliding token. With 32 random bytes per token this is not
// expected to happen outside of a broken entropy source.
var ErrTokenCollision = errors.New("session token collision")

// maxCreateAttempts bounds token regeneration on uniqueness collisions.
const maxCreateAttempts = 3

// Store persists session records. Every mutating operation is a single atomic
// storage operation; no locking is required across calls.
//
// Implementations may withhold records that are already past expiry (Redis
// does, via TTL), but callers must not rely on it: the authoritative expiry
// check belongs to the caller, against the same clock used at issuance.
type Store interface {
	// Create generates a globally unique opaque token, persists a new record
	// for userID expiring at expiresAt, and returns the token. Collisions are
	// regenerated internally, never surfaced.
	Create(ctx context.Context, userID string, expiresAt time.Time) (string, error)

	// FindByToken returns the record for token, or ErrNotFound.
	FindByToken(ctx context.Context, token string) (*Session, error)

	// DeleteByToken removes one record and reports how many rows went away.
	// Deleting an absent token is not an error; it returns 0.
	DeleteByToken(ctx context.Context, token string) (int64, error)

	// DeleteAllForUser removes every record owned by userID in one atomic
	// operation and reports the count.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)

	// CountActiveForUser reports how many non-expired records userID owns.
	CountActiveForUser(ctx context.Context, userID string) (int64, error)

	// SweepExpired deletes all records past expiry and reports the count.
	// Intended for a background schedule, never the request path.
	SweepExpired(ctx context.Context) (int64, error)
}
