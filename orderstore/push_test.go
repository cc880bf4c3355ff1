package orderstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchenedge/orders"
	"kitchenedge/protocol"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) orderEvents() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		if ev.Order != nil {
			out = append(out, string(ev.Kind)+":"+ev.Order.ID)
		}
	}
	return out
}

func (l *eventLog) keepalives() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == Keepalive {
			n++
		}
	}
	return n
}

func TestSSEPushStreamsEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/events" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: order-created\ndata: {\"id\":\"o1\",\"status\":\"received\"}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: order-status-changed\ndata: {\"id\":\"o1\",\"status\":\"preparing\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	log := &eventLog{}
	done := make(chan error, 1)
	go func() { done <- NewSSEPush(srv.URL).Subscribe(ctx, log.handle) }()

	require.Eventually(t, func() bool { return len(log.orderEvents()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"created:o1", "status_changed:o1"}, log.orderEvents())
	assert.GreaterOrEqual(t, log.keepalives(), 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func TestNotifierFanOut(t *testing.T) {
	n := NewNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	a, b := &eventLog{}, &eventLog{}
	go n.Subscribe(ctx, a.handle)
	go n.Subscribe(ctx, b.handle)
	require.Eventually(t, func() bool { return n.Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	n.Publish(Event{Kind: OrderCreated, Order: &orders.Order{ID: "o1"}})
	assert.Equal(t, []string{"created:o1"}, a.orderEvents())
	assert.Equal(t, []string{"created:o1"}, b.orderEvents())

	cancel()
	require.Eventually(t, func() bool { return n.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

type memStore struct {
	mu     sync.Mutex
	orders map[string]*orders.Order
}

func (m *memStore) ListOpenOrders(context.Context) ([]*orders.Order, error) { return nil, nil }

func (m *memStore) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (m *memStore) RequestStatusChange(_ context.Context, id string, status orders.Status, _ orders.TransitionExtra) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func TestNotifyingStorePublishesChanges(t *testing.T) {
	n := NewNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := &eventLog{}
	go n.Subscribe(ctx, log.handle)
	require.Eventually(t, func() bool { return n.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	s := NewNotifyingStore(&memStore{orders: map[string]*orders.Order{"o1": {ID: "o1", Status: orders.StatusReceived}}}, n)
	require.NoError(t, s.RequestStatusChange(ctx, "o1", orders.StatusPreparing, orders.TransitionExtra{}))
	assert.Equal(t, []string{"status_changed:o1"}, log.orderEvents())

	assert.ErrorIs(t, s.RequestStatusChange(ctx, "missing", orders.StatusPreparing, orders.TransitionExtra{}), ErrNotFound)
	assert.Len(t, log.orderEvents(), 1)
}

type fakeSubscriber struct {
	mu       sync.Mutex
	topics   []string
	handlers []func([]byte)
}

func (f *fakeSubscriber) Subscribe(topic string, h func([]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.handlers = append(f.handlers, h)
	return nil
}

func (f *fakeSubscriber) deliver(t *testing.T, msgType, station string, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(msgType, protocol.Address{Role: protocol.RoleStore}, protocol.Address{Role: protocol.RoleStation, Station: station}, payload)
	require.NoError(t, err)
	data, err := env.Encode()
	require.NoError(t, err)
	f.mu.Lock()
	hs := append([]func([]byte){}, f.handlers...)
	f.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

func TestMessagingPush(t *testing.T) {
	sub := &fakeSubscriber{}
	push := NewMessagingPush(sub, "kitchen/orders/events", "kitchen-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, b := &eventLog{}, &eventLog{}
	go push.Subscribe(ctx, a.handle)
	go push.Subscribe(ctx, b.handle)
	require.Eventually(t, func() bool { return push.notifier.Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	sub.deliver(t, protocol.TypeOrderCreated, "", &protocol.OrderEvent{Order: &orders.Order{ID: "o1", Status: orders.StatusReceived}})
	sub.deliver(t, protocol.TypeOrderStatusChanged, "kitchen-2", &protocol.OrderEvent{Order: &orders.Order{ID: "o2", Status: orders.StatusReady}})
	sub.deliver(t, protocol.TypeOrderStatusChanged, "kitchen-1", &protocol.OrderEvent{Order: &orders.Order{ID: "o1", Status: orders.StatusPreparing}})

	assert.Equal(t, []string{"kitchen/orders/events"}, sub.topics, "topic subscribed once")
	assert.Equal(t, []string{"created:o1", "status_changed:o1"}, a.orderEvents())
	assert.Equal(t, a.orderEvents(), b.orderEvents())
}
