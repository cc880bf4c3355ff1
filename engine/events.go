package engine

import (
	"time"

	"kitchenedge/autoprint"
	"kitchenedge/orders"
	"kitchenedge/printing"
)

// EventType identifies the kind of event emitted by the Engine.
type EventType int

const (
	// Display lifecycle
	EventSessionStarted EventType = iota + 1
	EventSessionStopped

	// Session state
	EventOrdersChanged
	EventAlarmStateChanged

	// Printing
	EventPrintOutcome
	EventPromptRaised
	EventPromptWithdrawn
)

var eventNames = map[EventType]string{
	EventSessionStarted:    "session-started",
	EventSessionStopped:    "session-stopped",
	EventOrdersChanged:     "orders",
	EventAlarmStateChanged: "alarm-state",
	EventPrintOutcome:      "print-outcome",
	EventPromptRaised:      "prompt-raised",
	EventPromptWithdrawn:   "prompt-withdrawn",
}

// String returns the name used for the event on the SSE stream.
func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// Event is the envelope emitted by the Engine's EventBus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   DisplayEvent
}

// DisplayEvent is implemented by every payload; events are routed per display.
type DisplayEvent interface {
	Display() string
}

type SessionEvent struct {
	DisplayID string `json:"display_id"`
	Reason    string `json:"reason,omitempty"`
}

type OrdersChangedEvent struct {
	DisplayID string          `json:"display_id"`
	Orders    []*orders.Order `json:"orders"`
	Awaiting  int             `json:"awaiting"`
}

type AlarmStateEvent struct {
	DisplayID string `json:"display_id"`
	Active    bool   `json:"active"`
}

// PrintOutcomeEvent reports a finished print attempt. Reason is empty on success.
type PrintOutcomeEvent struct {
	DisplayID    string        `json:"display_id"`
	OrderID      string        `json:"order_id"`
	Mode         printing.Mode `json:"mode"`
	Success      bool          `json:"success"`
	Deduplicated bool          `json:"deduplicated,omitempty"`
	Kind         string        `json:"kind,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	AttemptedAt  time.Time     `json:"attempted_at"`
}

type PromptEvent struct {
	DisplayID string           `json:"display_id"`
	Prompt    autoprint.Prompt `json:"prompt"`
}

func (e SessionEvent) Display() string       { return e.DisplayID }
func (e OrdersChangedEvent) Display() string { return e.DisplayID }
func (e AlarmStateEvent) Display() string    { return e.DisplayID }
func (e PrintOutcomeEvent) Display() string  { return e.DisplayID }
func (e PromptEvent) Display() string        { return e.DisplayID }
