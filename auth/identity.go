package auth

import "time"

// AuthMethod indicates how the identity was derived from the credential.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodOpaque AuthMethod = "opaque"
)

// Identity is the user a session acts for.
type Identity struct {
	// UserID is the stable user identifier.
	UserID string

	// Method indicates how the identity was derived.
	Method AuthMethod

	// Claims holds the decoded token claims. Empty for opaque credentials.
	Claims map[string]any

	// ExpiresAt is when the access credential expires. Zero if unknown.
	ExpiresAt time.Time

	// IssuedAt is when the access credential was issued. Zero if unknown.
	IssuedAt time.Time
}

// IsExpired reports whether the credential is past its expiry.
func (id *Identity) IsExpired() bool {
	return id.ExpiresWithin(0)
}

// ExpiresWithin reports whether the credential expires within d.
// Identities without a known expiry never expire.
func (id *Identity) ExpiresWithin(d time.Duration) bool {
	if id == nil || id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(d).After(id.ExpiresAt)
}

// Same reports whether id and other are the same user.
func (id *Identity) Same(other *Identity) bool {
	if id == nil || other == nil {
		return id == other
	}
	return id.UserID == other.UserID
}
