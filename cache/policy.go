package cache

import "time"

// Policy configures entry lifetime and fetch concurrency.
type Policy struct {
	// GraceWindow is how long an entry with no subscribers is kept before
	// eviction. Zero evicts immediately on the last Unsubscribe.
	// Default (DefaultPolicy): 60s
	GraceWindow time.Duration

	// MaxConcurrentFetches bounds fetches running at once across the store.
	// Default: 8
	MaxConcurrentFetches int64
}

// DefaultPolicy returns the default policy.
// GraceWindow: 60s, MaxConcurrentFetches: 8
func DefaultPolicy() Policy {
	return Policy{
		GraceWindow:          60 * time.Second,
		MaxConcurrentFetches: 8,
	}
}

// withDefaults fills unset fields. A zero GraceWindow is kept as-is.
func (p Policy) withDefaults() Policy {
	if p.GraceWindow < 0 {
		p.GraceWindow = 0
	}
	if p.MaxConcurrentFetches <= 0 {
		p.MaxConcurrentFetches = 8
	}
	return p
}
