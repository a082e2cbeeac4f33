package dispatch

import "errors"

var (
	// ErrNoActiveSubscribers means the tenant has nobody to send to; nothing was persisted.
	ErrNoActiveSubscribers = errors.New("no active subscribers")
	// ErrInvalidMessage wraps the validation errors of a rejected message.
	ErrInvalidMessage = errors.New("invalid message")
)
