package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/offsync/internal/changelog"
)

// RemoteError reports a failed call to the remote source.
//
// Remote errors never propagate to mutation callers or subscribers. The
// engine logs them and leaves state untouched: a failed fetch keeps the
// previous snapshot, a failed push keeps the pending change for the next
// push round.
type RemoteError struct {
	// Code identifies the error category.
	Code RemoteErrorCode

	// Collection is the affected collection.
	Collection string

	// Change is the change being pushed (push errors only).
	Change *changelog.Change

	// Err is the underlying failure.
	Err error
}

// RemoteErrorCode categorizes remote errors.
type RemoteErrorCode string

const (
	// ErrCodeRemoteFetch indicates a full fetch failed.
	ErrCodeRemoteFetch RemoteErrorCode = "REMOTE_FETCH"

	// ErrCodeRemotePush indicates pushing a pending change failed.
	ErrCodeRemotePush RemoteErrorCode = "REMOTE_PUSH"
)

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Change != nil {
		return fmt.Sprintf("%s: %s %s (collection=%s): %v",
			e.Code, e.Change.Kind, e.Change.ID, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s: collection=%s: %v", e.Code, e.Collection, e.Err)
}

// Unwrap returns the underlying failure.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsFetchError returns true if err is a failed fetch.
// Uses errors.As to handle wrapped errors.
func IsFetchError(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRemoteFetch
	}
	return false
}

// IsPushError returns true if err is a failed push.
func IsPushError(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRemotePush
	}
	return false
}

// NewFetchError creates a RemoteError for a failed fetch.
func NewFetchError(collection string, err error) *RemoteError {
	return &RemoteError{Code: ErrCodeRemoteFetch, Collection: collection, Err: err}
}

// NewPushError creates a RemoteError for a failed push.
func NewPushError(collection string, change changelog.Change, err error) *RemoteError {
	return &RemoteError{Code: ErrCodeRemotePush, Collection: collection, Change: &change, Err: err}
}
