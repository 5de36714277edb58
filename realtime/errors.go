package realtime

import "errors"

var (
	// ErrMissingURL is returned by New when Config.URL is empty.
	ErrMissingURL = errors.New("realtime: url is required")

	// ErrNilStore is returned by New when no cache store is supplied.
	ErrNilStore = errors.New("realtime: store is required")

	// ErrMissingUserID is returned by Start without a user id.
	ErrMissingUserID = errors.New("realtime: user id is required")

	// ErrNotConnected is returned when an outbound event is sent while no
	// connection is up. Outbound events are not queued across reconnects.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrSendBufferFull is returned when the outbound queue is full.
	ErrSendBufferFull = errors.New("realtime: send buffer full")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("realtime: reconciler is closed")
)
