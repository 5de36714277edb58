package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthExpired is returned when the credential could not be refreshed.
	// The session has been ended by the time a caller sees it.
	ErrAuthExpired = errors.New("gateway: authorization expired")

	// ErrMissingBaseURL is returned by New when Config.BaseURL is empty.
	ErrMissingBaseURL = errors.New("gateway: base url is required")

	// ErrInvalidBaseURL is returned by New when Config.BaseURL does not parse
	// as an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("gateway: invalid base url")

	// ErrNilSession is returned by New when no session is supplied.
	ErrNilSession = errors.New("gateway: session is required")

	// ErrEmptyCredential is returned when an auth endpoint answers without a credential.
	ErrEmptyCredential = errors.New("gateway: response carried no credential")
)

// ServerError is a non-2xx response other than an authorization failure.
type ServerError struct {
	Status  int
	Body    []byte
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("gateway: server returned %d: %s", e.Status, e.Message)
}

// ClientError reports whether the server rejected the request itself (4xx).
func (e *ServerError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
