// Package sink defines the notification-sink port and its Telegram
// implementation.
package sink

import (
	"errors"
	"fmt"
)

// Sink delivers rendered items to a chat. Implementations classify their
// failures: transient errors may be retried by the caller, fatal errors mean
// the chat is unreachable and the delivery should be dropped.
type Sink interface {
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, url, caption string) error
	// SendMediaGroup sends several photos as one album, caption on the first.
	SendMediaGroup(chatID int64, urls []string, caption string) error
}

// TransientError wraps a delivery failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError wraps a delivery failure that will not succeed on retry,
// such as the bot being blocked by the chat.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether the target chat is permanently unreachable.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
