package auth

import "context"

type contextKey int

const (
	identityKey contextKey = iota
	skipCredentialKey
)

// WithIdentity returns a new context with the given identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context.
// Returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// UserIDFromContext returns the user id of the identity in ctx, or "".
func UserIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.UserID
	}
	return ""
}

// WithoutCredential marks requests issued with ctx as unauthenticated:
// no bearer credential is attached and an authorization failure is returned
// as-is instead of triggering a refresh. Login and refresh calls use it.
func WithoutCredential(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipCredentialKey, true)
}

// SkipsCredential reports whether ctx was marked by WithoutCredential.
func SkipsCredential(ctx context.Context) bool {
	skip, _ := ctx.Value(skipCredentialKey).(bool)
	return skip
}
