package printing

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is against a *Error.
var (
	ErrTransportUnavailable   = errors.New("print transport unavailable")
	ErrTransportNotConfigured = errors.New("print transport not configured")
	ErrRenderFailure          = errors.New("receipt render failure")
)

// Kind classifies a print failure.
type Kind int

const (
	KindTransportUnavailable Kind = iota + 1
	KindNotConfigured
	KindRenderFailure
)

func (k Kind) String() string {
	switch k {
	case KindTransportUnavailable:
		return "transport_unavailable"
	case KindNotConfigured:
		return "not_configured"
	case KindRenderFailure:
		return "render_failure"
	}
	return "unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransportUnavailable:
		return ErrTransportUnavailable
	case KindNotConfigured:
		return ErrTransportNotConfigured
	case KindRenderFailure:
		return ErrRenderFailure
	}
	return nil
}

// Error is a failed print attempt. Reason is shown to the operator as is.
type Error struct {
	Kind      Kind
	Transport Mode
	OrderID   string
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("print %s via %s: %s: %v", e.OrderID, e.Transport, e.Reason, e.Err)
	}
	return fmt.Sprintf("print %s via %s: %s", e.OrderID, e.Transport, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Unavailable wraps a transport failure. Transports return it so the
// dispatcher keeps their reason text.
func Unavailable(mode Mode, reason string, err error) *Error {
	return &Error{Kind: KindTransportUnavailable, Transport: mode, Reason: reason, Err: err}
}

// classify turns any transport error into a *Error for the given order.
func classify(orderID string, mode Mode, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		out := *pe
		out.OrderID = orderID
		if out.Transport == "" {
			out.Transport = mode
		}
		if out.Kind == 0 {
			out.Kind = KindTransportUnavailable
		}
		return &out
	}
	return &Error{Kind: KindTransportUnavailable, Transport: mode, OrderID: orderID, Reason: "printer did not respond", Err: err}
}
