// Package observe provides observability primitives for the sync core.
//
// Every network round-trip, cache fetch and mutation is described by an
// Operation. The Middleware wraps an operation with an otel span, counters
// and a duration histogram, and a structured log line. Components that are
// constructed without an Observer fall back to no-op implementations.
package observe
