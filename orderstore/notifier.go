package orderstore

import (
	"context"
	"sync"

	"kitchenedge/orders"
)

// Notifier fans pushed events out to every subscriber. Local adapters
// publish to it after they change an order.
type Notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]PushHandler
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]PushHandler)}
}

// Subscribe registers h until ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context, h PushHandler) error {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs[id] = h
	n.mu.Unlock()

	h(Event{Kind: Keepalive})
	<-ctx.Done()

	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
	return nil
}

// Publish delivers ev to every current subscriber.
func (n *Notifier) Publish(ev Event) {
	n.mu.RLock()
	subs := make([]PushHandler, 0, len(n.subs))
	for _, h := range n.subs {
		subs = append(subs, h)
	}
	n.mu.RUnlock()
	for _, h := range subs {
		h(ev)
	}
}

// Subscribers returns the number of live subscriptions.
func (n *Notifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// NotifyingStore publishes status changes made through it to a Notifier.
type NotifyingStore struct {
	Store
	notifier *Notifier
}

func NewNotifyingStore(s Store, n *Notifier) *NotifyingStore {
	return &NotifyingStore{Store: s, notifier: n}
}

func (s *NotifyingStore) RequestStatusChange(ctx context.Context, id string, status orders.Status, extra orders.TransitionExtra) error {
	if err := s.Store.RequestStatusChange(ctx, id, status, extra); err != nil {
		return err
	}
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil
	}
	s.notifier.Publish(Event{Kind: StatusChanged, Order: o})
	return nil
}
