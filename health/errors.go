package health

import "errors"

var (
	// ErrCheckTimeout is the error of a check that outlived the aggregator timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned by Aggregator.Check for an unknown name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNoSession is the error of a session check without an active session.
	ErrNoSession = errors.New("health: no active session")
)
