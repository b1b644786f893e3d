package eventbridge

import "errors"

// Domain-specific errors for the event bridge.
var (
	// ErrEmptyTopicPrefix is returned by Connect when no topic prefix is given.
	ErrEmptyTopicPrefix = errors.New("eventbridge: topic prefix cannot be empty")

	// ErrInvalidEndpoint is returned by Connect for a malformed or unsupported broker URL.
	ErrInvalidEndpoint = errors.New("eventbridge: invalid endpoint")

	// ErrNilHandler is returned by Connect when onEvent is nil.
	ErrNilHandler = errors.New("eventbridge: event handler cannot be nil")

	// ErrDialFailed is returned by Connect when the transport cannot be constructed.
	ErrDialFailed = errors.New("eventbridge: transport construction failed")

	// ErrConnectTimeout is recorded when a connect attempt exceeds its timeout.
	ErrConnectTimeout = errors.New("eventbridge: connect attempt timed out")

	// ErrMalformedPayload is recorded when a frame is not UTF-8 JSON.
	ErrMalformedPayload = errors.New("eventbridge: malformed payload")
)
