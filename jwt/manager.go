// Package jwt mints and verifies the short-lived access credentials issued by
// the engine. Tokens are self-contained HS256 JWTs carrying the user id and an
// expiry claim; verification never touches storage.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSecretMissing is returned when a mint or verify call is attempted with no
// signing secret configured. Config validation should have refused startup
// long before this point; the check here exists so that a token can never be
// signed with an empty key.
var ErrSecretMissing = errors.New("jwt signing secret missing")

// ErrTokenInvalid is the uniform failure for any structurally malformed,
// forged, or expired access credential. Callers are told nothing more
// specific.
var ErrTokenInvalid = errors.New("invalid token")

// Config holds the codec settings. Secret must be set; Now defaults to
// time.Now. The same Now must be shared with session expiry checks so both
// layers agree on the clock.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
	Now       func() time.Time
}

// Manager signs and parses access credentials. Safe for concurrent use.
type Manager struct {
	config Config
}

// AccessClaims is the claim set embedded in every access credential.
type AccessClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrSecretMissing
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{config: cfg}, nil
}

// CreateAccess mints a credential for uid and returns it together with its
// expiry instant. The credential is valid strictly while now < expiresAt.
func (m *Manager) CreateAccess(uid string) (string, time.Time, error) {
	if len(m.config.Secret) == 0 {
		return "", time.Time{}, ErrSecretMissing
	}

	now := m.config.Now()
	expiresAt := now.Add(m.config.AccessTTL)

	claims := AccessClaims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseAccess verifies signature and expiry and returns the embedded uid.
// Every failure mode collapses to ErrTokenInvalid so that callers cannot be
// used as a validation oracle.
func (m *Manager) ParseAccess(tokenStr string) (string, error) {
	if len(m.config.Secret) == 0 {
		return "", ErrSecretMissing
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.config.Now),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.UID == "" {
		return "", ErrTokenInvalid
	}

	return claims.UID, nil
}
