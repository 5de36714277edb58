// Package auth holds the client session: the access credential, the identity
// it belongs to, and the lifecycle hooks that run when a session begins or ends.
//
// A Session is created empty, begins on login, rotates its credential on
// refresh, and ends on logout or irrecoverable refresh failure. Ending runs
// the registered teardown hooks synchronously and in registration order, so
// identity-gated state (cached entries, the realtime connection) is gone
// before End returns.
//
// Access credentials are usually JWTs. Their claims are decoded without
// signature verification (the server is the authority) to learn the user id
// and expiry. Opaque credentials are accepted with an explicit user id.
package auth
