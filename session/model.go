package session

import "time"

// Session is one server-side login record: one row per authenticated
// device/browser instance. Token is the opaque long-lived credential and the
// globally unique lookup key; a user may own any number of concurrent
// sessions.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the session is past its expiry at the given
// instant. Expiry is a closed interval: a session whose ExpiresAt equals now
// is already expired.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
