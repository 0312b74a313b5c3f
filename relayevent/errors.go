package relayevent

import "errors"

var (
	ErrDeliveryFailed = errors.New("event channel is full")
	ErrEmitterClosed  = errors.New("event channel is closed")
	ErrInvalidEvent   = errors.New("event type does not match its payload")
)
