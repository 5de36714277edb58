package auth

import "errors"

// Sentinel errors for the client session.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrMissingUserID      = errors.New("auth: credential carries no user id")
	ErrNoSession          = errors.New("auth: no active session")
)
