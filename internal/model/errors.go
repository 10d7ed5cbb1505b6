package model

import "errors"

var (
	// ErrNotFound means the referenced garage or reservation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSlot means the request violates a static rule (past time,
	// closed day, quota exhausted, malformed slot label).
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrConflict means the caller lost a race for a slot. Retryable after
	// re-querying availability.
	ErrConflict = errors.New("slot conflict")

	// ErrInternal covers storage failures, reference allocation exhaustion
	// and timeouts. Retryable after backoff.
	ErrInternal = errors.New("internal error")
)
