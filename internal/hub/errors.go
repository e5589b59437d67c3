package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrNegotiation is wrapped by every negotiation failure.
	ErrNegotiation = errors.New("negotiating hub connection")
	// ErrConnectTimeout is returned when the init frame does not arrive in time.
	ErrConnectTimeout = errors.New("timed out waiting for hub init message")
	// ErrTooManyConsecutiveErrors is reported when the keep-alive loop gives up.
	ErrTooManyConsecutiveErrors = errors.New("too many consecutive connection errors")
)

// NegotiationError describes a failed negotiate request. StatusCode is zero
// when the request never got a response.
type NegotiationError struct {
	StatusCode int
	Reason     string
}

func (e *NegotiationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", ErrNegotiation, e.Reason)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrNegotiation, e.StatusCode, e.Reason)
}

func (e *NegotiationError) Unwrap() error {
	return ErrNegotiation
}
