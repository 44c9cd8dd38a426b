package session

import "errors"

// Sentinel errors for session operations.
var (
	ErrNoCredential      = errors.New("session: no credential")
	ErrCredentialExpired = errors.New("session: credential expired")
	ErrTokenMalformed    = errors.New("session: token malformed")
)
