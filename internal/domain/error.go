package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Credential pool
	ErrEmptyPool            = errors.New("no active credentials configured")
	ErrRateLimited          = errors.New("credential is rate limited")
	ErrCredentialsExhausted = errors.New("all credentials are rate limited; wait a moment and try again")

	// Batches
	ErrBatchInProgress   = errors.New("a batch is already being processed")
	ErrTooManyImages     = errors.New("too many images in batch")
	ErrNoImages          = errors.New("batch has no images")
	ErrUnsupportedImage  = errors.New("unsupported image")
	ErrInvalidTransition = errors.New("invalid item status transition")
	ErrBatchCanceled     = errors.New("batch canceled")
)

// RemoteError is a non-retryable failure reported by (or on the way to) the
// OCR provider. Message is kept verbatim for display.
type RemoteError struct {
	StatusCode int // 0 when the request never got an HTTP response
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error (status %d)", e.StatusCode)
	}
	return e.Message
}

// RateLimitedError wraps ErrRateLimited with whatever the provider said.
func RateLimitedError(msg string) error {
	if msg == "" {
		return ErrRateLimited
	}
	return fmt.Errorf("%w: %s", ErrRateLimited, msg)
}

// IsRateLimited reports whether err should trigger credential rotation.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
