// Package gateway issues authenticated HTTP calls against the backend.
//
// Every request carries the current session credential as a bearer
// Authorization header. An authorization failure (401) triggers a single
// coordinated refresh: at most one refresh call is outstanding at any time,
// concurrent failures queue behind it, and once it succeeds the failed
// requests are replayed exactly once each, in the order they queued. A failed
// refresh ends the session and fails every queued request with ErrAuthExpired.
//
// Non-auth failures are returned untouched as *ServerError or *NetworkError;
// the gateway never retries them.
//
// Login, Refresh and Logout talk to the /auth endpoints and drive the
// auth.Session lifecycle.
package gateway
