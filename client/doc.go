// Package client owns the sync core of one app instance.
//
// New builds every component from a config.Config and wires them together:
//
//	observe.Observer ─► Middleware (gateway, store, dispatcher, realtime)
//	auth.Session ─► gateway.Gateway ─► api.API ◄─ cache.Store, mutation.Dispatcher
//	                                      └─► realtime.Reconciler (message hints)
//
// The session drives the rest. Begin (through Login) starts the realtime
// connection for the signed-in user. End, whether from Logout or a failed
// credential refresh, runs the teardown in order: identity-gated cache
// entries are dropped, the realtime connection is stopped, and the
// OnSessionEnded callback fires.
//
//	c, err := client.New(ctx, cfg, client.WithSessionEnded(showLogin))
//	if err != nil { ... }
//	defer c.Close(ctx)
//
//	if _, err := c.Login(ctx, gateway.Credentials{Email: e, Password: p}); err != nil { ... }
//	feed, _ := c.API().Feed()
//	defer feed.Close()
package client
