// Package secret resolves secret references in configuration values.
//
// A value is first expanded against the environment (see ExpandEnvStrict),
// then any reference of the form
//
//	secretref:<provider>:<ref>
//
// is replaced by what the named Provider returns. A reference may be the
// whole value or embedded in it:
//
//	TRIPSYNC_APP_KEY=secretref:file:/run/secrets/app_key
//	TRIPSYNC_USER_AGENT=tripsync/${APP_VERSION}
//
// The env and file providers are built in; NewResolver registers any others.
package secret
