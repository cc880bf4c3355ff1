package engine

import (
	"errors"

	"kitchenedge/autoprint"
	"kitchenedge/orders"
	"kitchenedge/printing"
)

// sessionEmitter adapts the engine's EventBus to the session.Listener interface.
type sessionEmitter struct {
	bus       *EventBus
	displayID string
}

func (e *sessionEmitter) OrdersChanged(list []*orders.Order) {
	e.bus.Emit(Event{Type: EventOrdersChanged, Payload: OrdersChangedEvent{
		DisplayID: e.displayID, Orders: list, Awaiting: countAwaiting(list),
	}})
}

func (e *sessionEmitter) AlarmStateChanged(active bool) {
	e.bus.Emit(Event{Type: EventAlarmStateChanged, Payload: AlarmStateEvent{DisplayID: e.displayID, Active: active}})
}

func (e *sessionEmitter) PrintOutcome(job printing.Job) {
	e.bus.Emit(Event{Type: EventPrintOutcome, Payload: NewPrintOutcomeEvent(e.displayID, job)})
}

func (e *sessionEmitter) PromptRaised(p autoprint.Prompt) {
	e.bus.Emit(Event{Type: EventPromptRaised, Payload: PromptEvent{DisplayID: e.displayID, Prompt: p}})
}

func (e *sessionEmitter) PromptWithdrawn(p autoprint.Prompt) {
	e.bus.Emit(Event{Type: EventPromptWithdrawn, Payload: PromptEvent{DisplayID: e.displayID, Prompt: p}})
}

// NewPrintOutcomeEvent flattens a print job for listeners.
func NewPrintOutcomeEvent(displayID string, job printing.Job) PrintOutcomeEvent {
	ev := PrintOutcomeEvent{
		DisplayID:    displayID,
		OrderID:      job.OrderID,
		Mode:         job.Mode,
		Success:      job.Outcome.Success(),
		Deduplicated: job.Outcome.Deduplicated,
		Reason:       job.Outcome.Reason(),
		AttemptedAt:  job.AttemptedAt,
	}
	var perr *printing.Error
	if errors.As(job.Outcome.Err, &perr) {
		ev.Kind = perr.Kind.String()
	}
	return ev
}

func countAwaiting(list []*orders.Order) int {
	n := 0
	for _, o := range list {
		if o.Status == orders.StatusReceived {
			n++
		}
	}
	return n
}
