package cache

import "errors"

// MaxKeyLength is the maximum allowed length of a rendered cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrClosed     = errors.New("cache: store is closed")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrNilFetch   = errors.New("cache: fetch function is nil")
	ErrNotCached  = errors.New("cache: no entry for key")

	// ErrDiscarded is reported by a Call whose result was dropped because
	// its entry was evicted or reset before the fetch completed.
	ErrDiscarded = errors.New("cache: result discarded")
)
