package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDClaims lists the claims consulted for the user id, in order.
var UserIDClaims = []string{"sub", "user_id", "userId"}

// IsJWT reports whether credential looks like a compact JWS.
func IsJWT(credential string) bool {
	return strings.Count(credential, ".") == 2
}

// ParseCredential decodes the claims of a JWT access credential without
// verifying its signature.
func ParseCredential(credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return buildIdentity(claims), nil
}

func buildIdentity(claims jwt.MapClaims) *Identity {
	identity := &Identity{
		Method: AuthMethodJWT,
		Claims: make(map[string]any, len(claims)),
	}
	for k, v := range claims {
		identity.Claims[k] = v
	}

	for _, name := range UserIDClaims {
		switch v := claims[name].(type) {
		case string:
			identity.UserID = v
		case float64:
			identity.UserID = fmt.Sprintf("%.0f", v)
		}
		if identity.UserID != "" {
			break
		}
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		identity.IssuedAt = iat.Time
	}
	return identity
}

// identityFor derives the identity for a credential. userID, when set,
// takes precedence over the token claims and is required for opaque
// credentials.
func identityFor(credential, userID string) (*Identity, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredentials
	}

	if !IsJWT(credential) {
		if userID == "" {
			return nil, ErrMissingUserID
		}
		return &Identity{UserID: userID, Method: AuthMethodOpaque, IssuedAt: time.Now()}, nil
	}

	identity, err := ParseCredential(credential)
	if err != nil {
		return nil, err
	}
	if userID != "" {
		identity.UserID = userID
	}
	if identity.UserID == "" {
		return nil, ErrMissingUserID
	}
	return identity, nil
}
