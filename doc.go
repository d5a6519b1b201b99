// Package authcore implements the authentication and session lifecycle for
// credential-based services: login with Argon2id password verification,
// short-lived HS256 access tokens refreshed against a revocable server-side
// session, logout of one or all sessions, and single-use password reset and
// email verification tokens.
//
// The Engine is the single entry point. It is assembled with a Builder:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithUserStore(users).
//		WithSessionStore(sessions).
//		Build()
//
// Credential failures are deliberately uniform: an unknown handle and a wrong
// password both surface as ErrInvalidCredentials, and the work done in either
// case is the same, so neither the response nor its timing discloses which
// accounts exist.
//
// Storage is pluggable. The session package ships an in-memory store and a
// Redis store; the postgres package backs both users and sessions with
// PostgreSQL.
package authcore
