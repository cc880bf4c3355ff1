package engine

import (
	"slices"
	"sync"
	"time"
)

// SubscriberID identifies a registration for Unsubscribe.
type SubscriberID uint64

// SubscriberFunc is a callback invoked when an event is emitted.
type SubscriberFunc func(Event)

// Filter narrows the events a subscriber sees. Zero values match everything.
type Filter struct {
	Types   []EventType
	Display string
}

func (f Filter) matches(evt Event) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, evt.Type) {
		return false
	}
	if f.Display != "" && (evt.Payload == nil || evt.Payload.Display() != f.Display) {
		return false
	}
	return true
}

type subscription struct {
	id     SubscriberID
	fn     SubscriberFunc
	filter Filter
}

// EventBus delivers engine events synchronously, in registration order, on
// the emitting goroutine. Callbacks must not block.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	lastID SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for every event.
func (eb *EventBus) Subscribe(fn SubscriberFunc) SubscriberID {
	return eb.SubscribeFilter(Filter{}, fn)
}

// SubscribeTypes registers fn for the given event types on any display.
func (eb *EventBus) SubscribeTypes(fn SubscriberFunc, types ...EventType) SubscriberID {
	return eb.SubscribeFilter(Filter{Types: types}, fn)
}

// SubscribeFilter registers fn for events matching f.
func (eb *EventBus) SubscribeFilter(f Filter, fn SubscriberFunc) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.lastID++
	eb.subs = append(eb.subs, subscription{id: eb.lastID, fn: fn, filter: f})
	return eb.lastID
}

func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subs = slices.DeleteFunc(eb.subs, func(s subscription) bool { return s.id == id })
}

// Emit stamps evt if needed and hands it to every matching subscriber.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	subs := slices.Clone(eb.subs)
	eb.mu.RUnlock()

	for _, s := range subs {
		if s.filter.matches(evt) {
			s.fn(evt)
		}
	}
}
