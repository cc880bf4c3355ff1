package engine

import "log"

// wireEventHandlers keeps the heartbeat counters current and logs print
// failures.
func (e *Engine) wireEventHandlers() {
	e.Events.SubscribeTypes(func(evt Event) {
		ch := evt.Payload.(OrdersChangedEvent)
		e.statsMu.Lock()
		st := e.statusFor(ch.DisplayID)
		st.Open = len(ch.Orders)
		st.Awaiting = ch.Awaiting
		e.statsMu.Unlock()
	}, EventOrdersChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		a := evt.Payload.(AlarmStateEvent)
		e.statsMu.Lock()
		e.statusFor(a.DisplayID).AlarmActive = a.Active
		e.statsMu.Unlock()
		e.debugFn("display %s alarm active=%v", a.DisplayID, a.Active)
	}, EventAlarmStateChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		p := evt.Payload.(PrintOutcomeEvent)
		if p.Success {
			e.debugFn("display %s printed order %s via %s (dedup=%v)", p.DisplayID, p.OrderID, p.Mode, p.Deduplicated)
			return
		}
		log.Printf("display %s: print order %s via %s failed (%s): %s", p.DisplayID, p.OrderID, p.Mode, p.Kind, p.Reason)
	}, EventPrintOutcome)

	e.Events.SubscribeTypes(func(evt Event) {
		s := evt.Payload.(SessionEvent)
		e.statsMu.Lock()
		delete(e.stats, s.DisplayID)
		e.statsMu.Unlock()
		e.logFn("display %s stopped", s.DisplayID)
	}, EventSessionStopped)
}
