package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const (
	sessionTokenRawSize   = 32
	singleUseTokenRawSize = 32
)

// NewSessionToken returns a new opaque session token: 32 random bytes,
// base64url without padding. The token value is the storage lookup key and
// must be treated as a secret by callers.
func NewSessionToken() (string, error) {
	var raw [sessionTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewSingleUseToken returns a new opaque single-use token (reset or
// verification) together with its SHA-256 digest. Only the digest is ever
// persisted; the plaintext goes out-of-band to the account owner.
func NewSingleUseToken() (string, [32]byte, error) {
	var raw [singleUseTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", [32]byte{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw[:])
	return token, sha256.Sum256([]byte(token)), nil
}

// HashToken maps a presented token string to the digest form stored by
// UserStore implementations.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
