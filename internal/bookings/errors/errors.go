package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusChanged means a compare-and-set update found a different status than expected.
	ErrStatusChanged = errors.New("booking status changed concurrently")

	ErrLockTimeout = errors.New("timed out acquiring booking lock")

	ErrLockLost = errors.New("booking lock expired or taken over")
)
