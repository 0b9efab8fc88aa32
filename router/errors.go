package router

import "fmt"

var (
	// ErrUnknownRecipient is returned when an envelope addresses an endpoint
	// that never subscribed.
	ErrUnknownRecipient = fmt.Errorf("unknown recipient")

	// ErrAlreadySubscribed is returned when an endpoint id subscribes twice.
	ErrAlreadySubscribed = fmt.Errorf("endpoint already subscribed")

	// ErrClosed is returned for operations on a closed router.
	ErrClosed = fmt.Errorf("router closed")
)
