// Package source defines the content-source port and its implementations.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tweetbridge/internal/model"
)

// ErrNotFound is returned by ResolveFeed when no feed exists for a name.
var ErrNotFound = errors.New("feed not found")

// Source is the interface the forwarding engine needs from the upstream
// content provider.
type Source interface {
	// ResolveFeed maps a user-supplied handle to a feed identifier.
	ResolveFeed(ctx context.Context, name string) (string, error)
	// FetchRecent returns the most recent items for a feed, newest-first.
	FetchRecent(ctx context.Context, feedID string) ([]model.Item, error)
}

// RateLimitedError reports that the upstream refused the request and told us
// when its limit resets.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// TransientError wraps a failure worth retrying: network hiccups, bad
// upstream responses, unparseable payloads.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError wraps a failure that must not be retried in a hot loop, such as
// bad credentials or a feed that no longer exists.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal: %s", e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }

// AsRateLimited extracts a RateLimitedError from err, if present.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// IsTransient reports whether err should be retried with a short delay.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err must be surfaced instead of retried.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
