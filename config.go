package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tradepost/authcore/password"
)

// Config holds every tunable of the Engine. Zero values are filled from
// defaultConfig by the Builder; set only what you need to override.
//
// Config instances are treated as immutable once passed to Build.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Password      password.Config
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access token minting and validation.
type JWTConfig struct {
	// Secret is the HS256 signing key. Required; there is no default and
	// Build fails without it.
	Secret []byte

	AccessTTL time.Duration

	// Issuer, when set, is stamped into minted tokens and required on
	// validation.
	Issuer string

	// Leeway tolerates clock skew between the minting and validating
	// hosts. At most two minutes.
	Leeway time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures server-side session rows.
type SessionConfig struct {
	TTL time.Duration

	// MaxSessionsPerUser caps concurrent sessions per user. Zero means
	// unlimited.
	MaxSessionsPerUser int

	// SweepInterval is how often the background sweeper removes expired
	// rows, for callers that run one.
	SweepInterval time.Duration
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig configures single-use reset tokens.
type PasswordResetConfig struct {
	TokenTTL time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int

	// DropIfFull sheds events instead of blocking the calling flow when
	// the buffer is full. Dropped counts are observable via
	// Engine.AuditDropped.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig configures the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
		},
		Session: SessionConfig{
			TTL:           7 * 24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Password: password.DefaultConfig(),
		PasswordReset: PasswordResetConfig{
			TokenTTL: 15 * time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports hard configuration errors. Every missing required secret
// is listed by its field name, so a failed startup names exactly what to fix.
func (c *Config) Validate() error {
	var problems []string

	if len(c.JWT.Secret) == 0 {
		problems = append(problems, "missing required secret: JWT.Secret")
	}
	if c.JWT.AccessTTL <= 0 {
		problems = append(problems, "JWT.AccessTTL must be positive")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		problems = append(problems, "JWT.Leeway must be between 0 and 2m")
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "Session.TTL must be positive")
	}
	if c.Session.MaxSessionsPerUser < 0 {
		problems = append(problems, "Session.MaxSessionsPerUser must not be negative")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		problems = append(problems, "PasswordReset.TokenTTL must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		problems = append(problems, "Audit.BufferSize must be positive when audit is enabled")
	}

	if len(problems) == 0 {
		return nil
	}
	if len(c.JWT.Secret) == 0 {
		return fmt.Errorf("%w: %s", ErrSecretMissing, strings.Join(problems, "; "))
	}
	return errors.New("invalid config: " + strings.Join(problems, "; "))
}

// Warnings reports configuration that is legal but weaker than recommended.
// The Builder surfaces these through its warn function instead of failing.
func (c *Config) Warnings() []string {
	var warnings []string

	if n := len(c.JWT.Secret); n > 0 && n < 32 {
		warnings = append(warnings,
			fmt.Sprintf("JWT.Secret is %d bytes; 32 or more recommended for HS256", n))
	}
	if c.JWT.AccessTTL > time.Hour {
		warnings = append(warnings,
			"JWT.AccessTTL exceeds 1h; long-lived access tokens widen the revocation gap")
	}
	if c.PasswordReset.TokenTTL > time.Hour {
		warnings = append(warnings,
			"PasswordReset.TokenTTL exceeds 1h; reset links should expire quickly")
	}

	return warnings
}
