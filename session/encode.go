package session

import (
	"encoding/binary"
	"errors"
	"time"
)

// Binary layout of a stored session value, version 1:
//
//	[0]     schema version
//	[1]     user id length (n)
//	[2:2+n] user id bytes
//	        created_at unix seconds, int64 big endian
//	        expires_at unix seconds, int64 big endian
//
// The token itself is the storage key and is not repeated in the value.

const currentSchemaVersion = 1

// ErrCorrupt is returned when a stored session value cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

func encode(sess *Session) ([]byte, error) {
	uid := []byte(sess.UserID)
	if len(uid) == 0 || len(uid) > 255 {
		return nil, errors.New("invalid user id length")
	}

	buf := make([]byte, 0, 2+len(uid)+16)
	buf = append(buf, currentSchemaVersion, byte(len(uid)))
	buf = append(buf, uid...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(sess.CreatedAt.Unix()))
	buf = binary.BigEndian.AppendUint64(buf, uint64(sess.ExpiresAt.Unix()))
	return buf, nil
}

func decode(data []byte, sess *Session) error {
	if len(data) < 2 || data[0] != currentSchemaVersion {
		return ErrCorrupt
	}
	n := int(data[1])
	if n == 0 || len(data) != 2+n+16 {
		return ErrCorrupt
	}

	sess.UserID = string(data[2 : 2+n])
	created := int64(binary.BigEndian.Uint64(data[2+n:]))
	expires := int64(binary.BigEndian.Uint64(data[2+n+8:]))
	sess.CreatedAt = unixTime(created)
	sess.ExpiresAt = unixTime(expires)
	return nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
