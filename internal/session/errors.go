package session

import "errors"

var (
	// ErrMissingCredential means no bearer token was available; nothing was dialed.
	ErrMissingCredential = errors.New("missing credential")
	// ErrConnectTimeout means the socket did not open within the connect timeout.
	ErrConnectTimeout = errors.New("connect timeout")
	// ErrNotConnected is returned by sends outside the active state.
	ErrNotConnected = errors.New("not connected")
	// ErrConnectionLost means abnormal closures exhausted the reconnect budget.
	ErrConnectionLost = errors.New("connection lost")
	// ErrRemoteClosed means the backend closed the socket normally.
	ErrRemoteClosed = errors.New("closed by server")
	// ErrClosed is returned by Connect when the session was closed first.
	ErrClosed = errors.New("session closed")
	// ErrAlreadyStarted is returned when Connect is called twice.
	ErrAlreadyStarted = errors.New("session already started")
)
