// Package config loads the client configuration from the environment.
//
// Every variable carries the TRIPSYNC_ prefix. Telemetry settings live
// under TRIPSYNC_OBSERVE_ (for example TRIPSYNC_OBSERVE_LOG_LEVEL). String
// settings may use ${VAR} expansion and secretref: references (see package
// secret), so the app key can be kept out of the environment:
//
//	TRIPSYNC_BASE_URL=https://api.example.com
//	TRIPSYNC_APP_KEY=secretref:file:/run/secrets/app_key
//
// RealtimeURL defaults to the ws(s) form of BaseURL with path /ws.
package config
