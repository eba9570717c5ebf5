// Package errs defines the error taxonomy shared by the transport client
// and the envelope decoder.
//
// Two kinds of failure are distinguished so callers can branch on whether
// the network worked or whether the server's payload made sense:
//
//   - [TransportError] wraps a network or protocol level failure
//     (connectivity, TLS, timeout, cancellation, disk I/O of a download).
//   - [DecodeError] reports a response that arrived but could not be read
//     as an application envelope, or a payload that could not be converted
//     to the requested shape.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is wrapped by the TransportError of a cancelled task.
	ErrCancelled = errors.New("request cancelled")

	// ErrMultipartBody is returned when a multipart body is handed to an
	// operation other than upload.
	ErrMultipartBody = errors.New("multipart body is only supported by upload")

	// ErrNotMultipart is returned when upload is given a non-multipart body.
	ErrNotMultipart = errors.New("upload requires a multipart body")

	// ErrInvalidDescriptor is joined with the field errors of a descriptor
	// that failed validation.
	ErrInvalidDescriptor = errors.New("invalid request descriptor")

	// ErrResumeToken indicates a resume token that cannot be parsed or
	// no longer refers to a partial download.
	ErrResumeToken = errors.New("invalid resume token")
)

// TransportError is returned when a task fails below the application
// layer. The status code of a completed response is never interpreted,
// so a 500 is not a TransportError.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Description returns a human readable description of the cause.
func (e *TransportError) Description() string {
	if e.Err == nil {
		return "transport failed without a cause"
	}

	return e.Err.Error()
}

// Cancelled reports whether the failure was caused by cancellation.
func (e *TransportError) Cancelled() bool {
	return errors.Is(e.Err, ErrCancelled)
}

// DecodeError is returned when a response body or payload cannot be
// decoded. Message is always set.
type DecodeError struct {
	Message string
	Err     error
}

// NewDecodeError constructs a DecodeError with an optional cause.
func NewDecodeError(msg string, err error) *DecodeError {
	return &DecodeError{Message: msg, Err: err}
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Message, e.Err)
	}

	return "decode: " + e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDecode reports whether err carries a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
