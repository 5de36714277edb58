package gateway

import (
	"context"
	"net/http"

	"github.com/jonwraymond/tripsync/auth"
	"github.com/jonwraymond/tripsync/observe"
)

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body returned by the login and refresh endpoints.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId,omitempty"`
}

// Login exchanges credentials for an access credential and begins a session.
// The refresh cookie set by the server is kept by the client's cookie jar.
func (g *Gateway) Login(ctx context.Context, creds Credentials) (*auth.Identity, error) {
	tok, err := Post[TokenResponse](auth.WithoutCredential(ctx), g, LoginPath, creds)
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, ErrEmptyCredential
	}
	return g.session.Begin(ctx, tok.AccessToken, tok.UserID)
}

// Logout revokes the credential server side and ends the session. The
// session ends even when the logout call fails; that error is returned.
func (g *Gateway) Logout(ctx context.Context) error {
	cred, ok := g.session.Credential()
	if !ok {
		return nil
	}

	c, _ := newCall(Request{Method: http.MethodPost, Path: LogoutPath})
	_, err := g.send(ctx, c, cred.Token)
	if err != nil {
		g.logger.Warn(ctx, "logout call failed", observe.F("error", err))
	}
	g.session.End(ctx, auth.EndLogout)
	return err
}
