package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrBackendRejected  = errors.New("backend rejected request")
	ErrInvalidCode      = errors.New("invalid pairing code")
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrInvalidTarget    = errors.New("invalid chat target")
	ErrMissingQueueID   = errors.New("queue item has no id")
)

// TransportError is a failed exchange with the backend: network failure,
// timeout or a non-2xx status. StatusCode is zero when no response arrived.
type TransportError struct {
	Op         string
	StatusCode int
	Reason     string
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Retryable reports whether repeating the request may succeed.
func (e *TransportError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// ProtocolError is a 2xx response whose body could not be decoded.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError is local input rejected before any backend call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsRejected(err error) bool { return errors.Is(err, ErrBackendRejected) }
