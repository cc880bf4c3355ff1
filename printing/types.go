package printing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kitchenedge/orders"
	"kitchenedge/receipt"
)

// Mode names a print transport.
type Mode string

const (
	ModeSystemDialog  Mode = "system-dialog"
	ModeDirectThermal Mode = "direct-thermal"
	ModeBridge        Mode = "bridge"
	ModeBluetooth     Mode = "bluetooth"
)

var knownModes = map[Mode]bool{
	ModeSystemDialog:  true,
	ModeDirectThermal: true,
	ModeBridge:        true,
	ModeBluetooth:     true,
}

// ParseMode validates a transport name.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !knownModes[m] {
		return "", fmt.Errorf("unknown print mode %q", s)
	}
	return m, nil
}

// Transport delivers an encoded receipt to a printer.
type Transport interface {
	Mode() Mode
	Encoding() receipt.Encoding
	Print(ctx context.Context, p receipt.Payload) error
}

// OrderSource fetches full order detail before rendering.
type OrderSource interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
}

// PrintedMarker records that an order has been printed in the owning session.
type PrintedMarker interface {
	MarkPrinted(orderID string)
}

// PrintOptions tunes a single Print call. A nil MarkAsPrinted means true.
type PrintOptions struct {
	MarkAsPrinted *bool
}

func (o PrintOptions) mark() bool {
	return o.MarkAsPrinted == nil || *o.MarkAsPrinted
}

// Bool is a helper for PrintOptions literals.
func Bool(v bool) *bool { return &v }

// Outcome is success (Err == nil) or failure with a reason.
type Outcome struct {
	Err          error
	Deduplicated bool
}

func (o Outcome) Success() bool { return o.Err == nil }

// Reason is the operator-facing failure text, empty on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	var pe *Error
	if errors.As(o.Err, &pe) {
		return pe.Reason
	}
	return o.Err.Error()
}

// Job is the record of one print attempt.
type Job struct {
	OrderID     string
	Mode        Mode
	AttemptedAt time.Time
	Outcome     Outcome
}
