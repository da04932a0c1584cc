package growthbook

import (
	"errors"
	"fmt"
)

// GrowthBookError is the marker type for every sentinel error this package
// defines.
type GrowthBookError error

var (
	// ErrNetworkRequest marks a fetcher-level failure. Never returned to a
	// RefreshFeatures caller -- the fetcher swallows it and resolves with
	// an empty Payload -- but it is what gets logged.
	ErrNetworkRequest GrowthBookError = errors.New("failed network request")

	// ErrPersistFailure marks a PersistentStore read/write failure. Always
	// swallowed; the repository continues in memory-only mode.
	ErrPersistFailure GrowthBookError = errors.New("failed persistent store operation")

	// ErrStreamClosed marks a streaming channel that hit its error
	// threshold and is being torn down pending a backoff reopen.
	ErrStreamClosed GrowthBookError = errors.New("stream closed")
)

// TransportError wraps a fetcher failure with the endpoint being requested.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %s", e.Endpoint, e.Err.Error())
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrNetworkRequest }

// PersistError wraps a PersistentStore failure with the operation and key
// involved.
type PersistError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persistent store %s(%q) failed: %s", e.Op, e.Key, e.Err.Error())
}

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Is(target error) bool { return target == ErrPersistFailure }

// StreamError wraps a streaming-channel failure with the repository key and
// the error count that triggered it.
type StreamError struct {
	Key    string
	Errors int
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream for %q failed (%d consecutive errors): %s", e.Key, e.Errors, e.Err.Error())
}

func (e *StreamError) Unwrap() error { return e.Err }

func (e *StreamError) Is(target error) bool { return target == ErrStreamClosed }
