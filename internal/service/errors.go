package service

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest           = errors.New("bad request")
	ErrUnauthenticated      = errors.New("caller identity required")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrNotFound             = errors.New("document not found")
	ErrForbidden            = errors.New("forbidden")

	// ErrBlobMissing means the metadata row exists but its blob does not.
	ErrBlobMissing = fmt.Errorf("%w: stored file is missing", ErrNotFound)
)

// ValidationError reports a rejected input field. It matches ErrBadRequest with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
