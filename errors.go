package goOTC

import "errors"

var (
	// ErrInvalidRecipient is returned for an empty or oversized recipient key.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrInvalidIdentity is returned for an empty or oversized identity id.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidValidity is returned when a code validity is not positive.
	ErrInvalidValidity = errors.New("validity must be > 0")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrServiceUnavailable wraps every store, limiter or hashing fault.
	ErrServiceUnavailable = errors.New("credential service unavailable")

	errConflictRetries = errors.New("version conflict retries exhausted")
)
