// Package feed reconciles pulled snapshots and pushed updates into one
// ordered view of a display's open orders.
package feed

import (
	"log"
	"time"

	"kitchenedge/orders"
)

const DefaultThrottle = 5 * time.Second

// EventKind is the kind of change the feed reports.
type EventKind int

const (
	Arrived EventKind = iota + 1
	StatusChanged
)

func (k EventKind) String() string {
	switch k {
	case Arrived:
		return "arrived"
	case StatusChanged:
		return "status_changed"
	}
	return "unknown"
}

// Event is one change caused by applying a snapshot or push.
type Event struct {
	Kind  EventKind
	Order *orders.Order
	From  orders.Status // previous status, StatusChanged only
}

// PushKind is the kind of a pushed order event.
type PushKind string

const (
	PushCreated       PushKind = "created"
	PushStatusChanged PushKind = "status_changed"
)

// Config tunes pull throttling and stale detection.
type Config struct {
	Throttle   time.Duration
	StaleAfter time.Duration
}

// Feed holds orders keyed by id in arrival order. It is not safe for
// concurrent use; the owning session calls it from its loop only.
type Feed struct {
	cfg   Config
	ids   []string
	byID  map[string]*orders.Order
	first map[string]orders.Status

	lastPull  time.Time
	bypass    bool
	lastHeard time.Time

	DebugLog func(format string, args ...any)
}

func New(cfg Config) *Feed {
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}
	return &Feed{
		cfg:   cfg,
		byID:  make(map[string]*orders.Order),
		first: make(map[string]orders.Status),
	}
}

func (f *Feed) debug(format string, args ...any) {
	if fn := f.DebugLog; fn != nil {
		fn(format, args...)
	}
}

// Reset marks the push channel as heard at now. Sessions call it on start
// and whenever the push channel reconnects.
func (f *Feed) Reset(now time.Time) {
	f.lastHeard = now
}

// ApplySnapshot upserts every order in list. Known ids missing from the list
// are dropped unless still received, which the store may briefly omit.
// changed reports whether the visible list differs afterwards.
func (f *Feed) ApplySnapshot(list []*orders.Order) (events []Event, changed bool) {
	seen := make(map[string]bool, len(list))
	for _, o := range list {
		if o == nil || o.ID == "" {
			continue
		}
		seen[o.ID] = true
		ev, ch := f.upsert(o)
		events = append(events, ev...)
		changed = changed || ch
	}

	kept := f.ids[:0]
	for _, id := range f.ids {
		o := f.byID[id]
		if seen[id] || o.Status == orders.StatusReceived {
			kept = append(kept, id)
			continue
		}
		delete(f.byID, id)
		delete(f.first, id)
		changed = true
		f.debug("feed: %s (%s) left the snapshot", id, o.Status)
	}
	f.ids = kept
	return events, changed
}

// ApplyPush upserts a pushed order immediately and arms the pull bypass.
func (f *Feed) ApplyPush(kind PushKind, o *orders.Order, now time.Time) (events []Event, changed bool) {
	f.bypass = true
	f.lastHeard = now
	if o == nil || o.ID == "" {
		return nil, false
	}
	switch kind {
	case PushCreated, PushStatusChanged:
	default:
		log.Printf("feed: ignoring push of unknown kind %q for %s", kind, o.ID)
		return nil, false
	}
	return f.upsert(o)
}

// ApplyLocal records a status the operator just committed so the view does
// not wait for the next pull.
func (f *Feed) ApplyLocal(id string, status orders.Status, pickup *time.Time) (events []Event, changed bool) {
	cur, ok := f.byID[id]
	if !ok {
		return nil, false
	}
	next := cur.Clone()
	next.Status = status
	if pickup != nil {
		t := *pickup
		next.PickupTime = &t
	}
	return f.upsert(next)
}

func (f *Feed) upsert(in *orders.Order) ([]Event, bool) {
	if !orders.IsKnown(in.Status) {
		log.Printf("feed: ignoring order %s with unknown status %q", in.ID, in.Status)
		return nil, false
	}
	o := in.Clone()

	cur, ok := f.byID[o.ID]
	if !ok {
		f.byID[o.ID] = o
		f.ids = append(f.ids, o.ID)
		f.first[o.ID] = o.Status
		return []Event{{Kind: Arrived, Order: o.Clone()}}, true
	}

	if o.Status != cur.Status && !orders.CanProgress(cur.Status, o.Status) {
		f.debug("feed: stale status %s for %s (have %s)", o.Status, o.ID, cur.Status)
		o.Status = cur.Status
	}
	if o.Equal(cur) {
		return nil, false
	}
	from := cur.Status
	f.byID[o.ID] = o
	if o.Status != from {
		return []Event{{Kind: StatusChanged, Order: o.Clone(), From: from}}, true
	}
	return nil, true
}

// ShouldPull reports whether a pull may run now.
func (f *Feed) ShouldPull(now time.Time) bool {
	if f.bypass || f.lastPull.IsZero() {
		return true
	}
	return now.Sub(f.lastPull) >= f.cfg.Throttle
}

// PullStarted consumes the push bypass. A push that lands while the pull is
// running arms it again.
func (f *Feed) PullStarted() {
	f.bypass = false
}

// PullCompleted records a finished pull for the throttle.
func (f *Feed) PullCompleted(now time.Time) {
	f.lastPull = now
}

// Stale reports the push channel silent for longer than StaleAfter.
func (f *Feed) Stale(now time.Time) bool {
	if f.cfg.StaleAfter <= 0 || f.lastHeard.IsZero() {
		return false
	}
	return now.Sub(f.lastHeard) > f.cfg.StaleAfter
}

// Heard records push channel activity that carried no order.
func (f *Feed) Heard(now time.Time) {
	f.lastHeard = now
}

// Orders returns copies of the current orders in arrival order.
func (f *Feed) Orders() []*orders.Order {
	out := make([]*orders.Order, 0, len(f.ids))
	for _, id := range f.ids {
		out = append(out, f.byID[id].Clone())
	}
	return out
}

// Get returns a copy of one order.
func (f *Feed) Get(id string) (*orders.Order, bool) {
	o, ok := f.byID[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// FirstStatus is the status an order had when the feed first saw it.
func (f *Feed) FirstStatus(id string) (orders.Status, bool) {
	s, ok := f.first[id]
	return s, ok
}

// Awaiting counts orders still waiting to be accepted.
func (f *Feed) Awaiting() int {
	n := 0
	for _, id := range f.ids {
		if f.byID[id].Status == orders.StatusReceived {
			n++
		}
	}
	return n
}

// Len is the number of orders in view.
func (f *Feed) Len() int { return len(f.ids) }
