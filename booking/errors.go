package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/querycache/session"
)

// Sentinel errors for booking operations.
var (
	ErrNoUser           = errors.New("booking: no signed-in user")
	ErrUnexpectedStatus = errors.New("booking: unexpected response status")
)

// StatusError is a non-2xx response from the booking server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server responded %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Transient reports whether err looks like an outage rather than a
// rejection. Transport failures and 5xx responses count. Cancellation, an
// expired credential and 4xx responses do not.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, session.ErrCredentialExpired) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}
