// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed matches every *FetchError.
	ErrFetchFailed = errors.New("content fetch failed")

	// ErrInvalidPage is returned for a negative page index.
	ErrInvalidPage = errors.New("invalid page index")

	// ErrInvalidScope is returned for an unknown sort mode or a malformed channel id.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrInvalidItem is returned for an empty playback item id.
	ErrInvalidItem = errors.New("invalid item id")

	// ErrNoSession is returned by SessionCache operations that need an
	// active session when none exists for the scope.
	ErrNoSession = errors.New("no active session")

	// ErrStaleSession is returned by Put when the session's epoch is older
	// than the scope's current epoch.
	ErrStaleSession = errors.New("session epoch is stale")

	// ErrClosed is returned once the controller has been shut down.
	ErrClosed = errors.New("feed controller closed")
)

// FetchError reports a content repository failure while building a session.
type FetchError struct {
	Scope  ScopeKey
	Offset int
	Limit  int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s offset=%d limit=%d: %v", e.Scope, e.Offset, e.Limit, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetchFailed) true for any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}
