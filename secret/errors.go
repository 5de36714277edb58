package secret

import "errors"

var (
	// ErrMissingEnv is returned when a ${VAR} reference names an unset variable.
	ErrMissingEnv = errors.New("secret: missing environment variables")

	// ErrUnknownProvider is returned for a reference to an unregistered provider.
	ErrUnknownProvider = errors.New("secret: provider not registered")

	// ErrEmptySecret is returned by a strict Resolver when a provider returns "".
	ErrEmptySecret = errors.New("secret: provider returned empty value")

	// ErrNotFound is returned by a provider that has no value for a ref.
	ErrNotFound = errors.New("secret: not found")
)
