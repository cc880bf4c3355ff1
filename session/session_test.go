package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchenedge/autoprint"
	"kitchenedge/orders"
	"kitchenedge/orderstore"
	"kitchenedge/printing"
	"kitchenedge/receipt"
	"kitchenedge/settings"
)

// --- fakes ---

type fakeStore struct {
	mu      sync.Mutex
	orders  map[string]*orders.Order
	ids     []string
	commits []string
	failOn  error
}

func newFakeStore(list ...*orders.Order) *fakeStore {
	s := &fakeStore{orders: make(map[string]*orders.Order)}
	for _, o := range list {
		s.put(o)
	}
	return s
}

func (s *fakeStore) put(o *orders.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		s.ids = append(s.ids, o.ID)
	}
	s.orders[o.ID] = o.Clone()
}

func (s *fakeStore) ListOpenOrders(context.Context) ([]*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*orders.Order, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.orders[id].Clone())
	}
	return out, nil
}

func (s *fakeStore) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, orderstore.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *fakeStore) RequestStatusChange(_ context.Context, id string, status orders.Status, _ orders.TransitionExtra) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		return s.failOn
	}
	s.commits = append(s.commits, id+":"+string(status))
	if o, ok := s.orders[id]; ok {
		o.Status = status
	}
	return nil
}

func (s *fakeStore) getCommits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commits...)
}

// gatedStore holds the first pull until gate is closed and counts pulls.
type gatedStore struct {
	*fakeStore
	gate  chan struct{}
	pulls atomic.Int32
}

func (s *gatedStore) ListOpenOrders(ctx context.Context) ([]*orders.Order, error) {
	if s.pulls.Add(1) == 1 {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.fakeStore.ListOpenOrders(ctx)
}

type fakePush struct {
	mu      sync.Mutex
	handler orderstore.PushHandler
	ready   chan struct{}
}

func newFakePush() *fakePush { return &fakePush{ready: make(chan struct{})} }

func (p *fakePush) Subscribe(ctx context.Context, h orderstore.PushHandler) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	close(p.ready)
	<-ctx.Done()
	return nil
}

func (p *fakePush) send(ev orderstore.Event) {
	<-p.ready
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	h(ev)
}

type countingTransport struct {
	mode printing.Mode
	mu   sync.Mutex
	jobs map[string]int
}

func newCountingTransport(mode printing.Mode) *countingTransport {
	return &countingTransport{mode: mode, jobs: make(map[string]int)}
}

func (t *countingTransport) Mode() printing.Mode        { return t.mode }
func (t *countingTransport) Encoding() receipt.Encoding { return receipt.EncodingText }

func (t *countingTransport) Print(_ context.Context, p receipt.Payload) error {
	t.mu.Lock()
	t.jobs[p.OrderID]++
	t.mu.Unlock()
	return nil
}

func (t *countingTransport) count(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jobs[id]
}

func (t *countingTransport) total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.jobs {
		n += c
	}
	return n
}

type recordingListener struct {
	mu      sync.Mutex
	events  []string
	prompts []autoprint.Prompt
}

func (l *recordingListener) add(ev string) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *recordingListener) OrdersChanged(list []*orders.Order) { l.add(fmt.Sprintf("orders:%d", len(list))) }
func (l *recordingListener) AlarmStateChanged(active bool)      { l.add(fmt.Sprintf("alarm:%v", active)) }

func (l *recordingListener) PrintOutcome(job printing.Job) {
	result := "ok"
	if !job.Outcome.Success() {
		result = "failed"
	}
	l.add("print:" + job.OrderID + ":" + result)
}

func (l *recordingListener) PromptRaised(p autoprint.Prompt) {
	l.mu.Lock()
	l.prompts = append(l.prompts, p)
	l.mu.Unlock()
	l.add("prompt:" + p.OrderID)
}

func (l *recordingListener) PromptWithdrawn(p autoprint.Prompt) { l.add("withdrawn:" + p.OrderID) }

func (l *recordingListener) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev == event {
			return true
		}
	}
	return false
}

func (l *recordingListener) countOf(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev == event {
			n++
		}
	}
	return n
}

func (l *recordingListener) waitFor(event string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if l.has(event) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

type countingAlerter struct {
	mu     sync.Mutex
	alerts int
}

func (a *countingAlerter) Alert() error {
	a.mu.Lock()
	a.alerts++
	a.mu.Unlock()
	return nil
}

func (a *countingAlerter) Pulse() error { return nil }

func (a *countingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alerts
}

// --- helpers ---

func kitchenOrder(id string, status orders.Status) *orders.Order {
	return &orders.Order{
		ID:          id,
		ExternalID:  id,
		Status:      status,
		Channel:     orders.ChannelPOS,
		Items:       []orders.LineItem{{Name: "Pho", Quantity: 1, UnitPrice: decimal.RequireFromString("12.00")}},
		Subtotal:    decimal.RequireFromString("12.00"),
		TotalAmount: decimal.RequireFromString("12.96"),
		CreatedAt:   time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC),
	}
}

type harness struct {
	store     *fakeStore
	push      *fakePush
	transport *countingTransport
	listener  *recordingListener
	alerter   *countingAlerter
	session   *Session
}

func startSession(t *testing.T, autoPrint bool, list ...*orders.Order) *harness {
	t.Helper()
	return startSessionWith(t, autoPrint, nil, list...)
}

// startSessionWith lets a test adjust the config before the session starts.
func startSessionWith(t *testing.T, autoPrint bool, mutate func(*Config), list ...*orders.Order) *harness {
	t.Helper()
	h := &harness{
		store:     newFakeStore(list...),
		push:      newFakePush(),
		transport: newCountingTransport(printing.ModeBridge),
		listener:  &recordingListener{},
		alerter:   &countingAlerter{},
	}
	cfg := Config{
		DisplayID:  "front",
		Store:      h.store,
		Push:       h.push,
		Transports: []printing.Transport{h.transport},
		Settings: settings.Display{
			AutoPrint:  autoPrint,
			PrintMode:  string(printing.ModeBridge),
			PaperWidth: receipt.Paper80mm,
		},
		Alerter:      h.alerter,
		Listener:     h.listener,
		PullInterval: 50 * time.Millisecond,
		FeedThrottle: 10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	h.session = s
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return h
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond, msg)
}

// --- tests ---

func TestEndToEndAutoPrint(t *testing.T) {
	h := startSession(t, true, kitchenOrder("o1", orders.StatusReceived))

	require.True(t, h.listener.waitFor("print:o1:ok", 2*time.Second), "no print outcome")
	eventually(t, func() bool {
		v, err := h.session.View(context.Background())
		return err == nil && len(v.Printed) == 1 && v.Printed[0] == "o1"
	}, "o1 not in printed set")

	// later pulls do not print again
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, h.transport.count("o1"))
	assert.True(t, h.listener.has("alarm:true"))
	assert.GreaterOrEqual(t, h.alerter.count(), 1)
}

func TestReconnectDoesNotReprint(t *testing.T) {
	h := startSession(t, true,
		kitchenOrder("o1", orders.StatusPreparing),
		kitchenOrder("o2", orders.StatusReady),
	)

	require.True(t, h.listener.waitFor("orders:2", 2*time.Second))
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, h.transport.total())

	v, err := h.session.View(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"o1", "o2"}, v.Printed)
	assert.False(t, v.AlarmActive)
}

func TestPushThenPullPrintsOnce(t *testing.T) {
	h := startSession(t, true)

	o := kitchenOrder("o2", orders.StatusReceived)
	h.store.put(o)
	h.push.send(orderstore.Event{Kind: orderstore.OrderCreated, Order: o})
	h.push.send(orderstore.Event{Kind: orderstore.OrderCreated, Order: o})

	require.True(t, h.listener.waitFor("print:o2:ok", 2*time.Second))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, h.transport.count("o2"))
	assert.Equal(t, 1, h.listener.countOf("print:o2:ok"))
}

func TestAcceptTransitionStopsAlarm(t *testing.T) {
	h := startSession(t, false, kitchenOrder("o1", orders.StatusReceived))
	require.True(t, h.listener.waitFor("alarm:true", 2*time.Second))

	status, err := h.session.Transition(context.Background(), "o1", orders.StatusPreparing, orders.TransitionExtra{PrepMinutes: 20})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPreparing, status)
	assert.Equal(t, []string{"o1:preparing"}, h.store.getCommits())

	assert.True(t, h.listener.waitFor("alarm:false", 2*time.Second))
	v, err := h.session.View(context.Background())
	require.NoError(t, err)
	require.Len(t, v.Orders, 1)
	assert.Equal(t, orders.StatusPreparing, v.Orders[0].Status)
	assert.NotNil(t, v.Orders[0].PickupTime)
}

func TestIllegalTransitionNotCommitted(t *testing.T) {
	h := startSession(t, true, kitchenOrder("o1", orders.StatusReceived))
	require.True(t, h.listener.waitFor("orders:1", 2*time.Second))

	_, err := h.session.Transition(context.Background(), "o1", orders.StatusCompleted, orders.TransitionExtra{})
	assert.ErrorIs(t, err, orders.ErrIllegalTransition)

	_, err = h.session.Transition(context.Background(), "missing", orders.StatusPreparing, orders.TransitionExtra{})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.Empty(t, h.store.getCommits())
}

func TestCommitFailureLeavesState(t *testing.T) {
	h := startSession(t, false, kitchenOrder("o1", orders.StatusReceived))
	require.True(t, h.listener.waitFor("orders:1", 2*time.Second))
	h.store.mu.Lock()
	h.store.failOn = errors.New("store offline")
	h.store.mu.Unlock()

	_, err := h.session.Transition(context.Background(), "o1", orders.StatusPreparing, orders.TransitionExtra{})
	require.Error(t, err)

	v, err := h.session.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orders.StatusReceived, v.Orders[0].Status)
}

func TestPromptFlowWhenAutoPrintDisabled(t *testing.T) {
	h := startSession(t, false, kitchenOrder("o1", orders.StatusReceived))
	require.True(t, h.listener.waitFor("prompt:o1", 2*time.Second))
	assert.Zero(t, h.transport.total())

	h.listener.mu.Lock()
	pid := h.listener.prompts[0].ID
	h.listener.mu.Unlock()

	p, err := h.session.AcceptPrompt(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, autoprint.PromptResolved, p.State)
	require.True(t, h.listener.waitFor("print:o1:ok", 2*time.Second))

	_, err = h.session.AcceptPrompt(context.Background(), pid)
	assert.ErrorIs(t, err, autoprint.ErrPromptResolved)
}

func TestManualPrintWithoutMarking(t *testing.T) {
	h := startSession(t, false, kitchenOrder("o1", orders.StatusReceived))
	require.True(t, h.listener.waitFor("orders:1", 2*time.Second))

	job, err := h.session.Print(context.Background(), "o1", "", printing.PrintOptions{MarkAsPrinted: printing.Bool(false)})
	require.NoError(t, err)
	assert.True(t, job.Outcome.Success())
	assert.Equal(t, printing.ModeBridge, job.Mode)

	v, err := h.session.View(context.Background())
	require.NoError(t, err)
	assert.Empty(t, v.Printed)

	job, err = h.session.Print(context.Background(), "o1", printing.ModeBluetooth, printing.PrintOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Outcome.Err, printing.ErrTransportNotConfigured)
}

func TestStoppedSessionRejectsCommands(t *testing.T) {
	h := startSession(t, false, kitchenOrder("o1", orders.StatusReceived))
	require.True(t, h.listener.waitFor("alarm:true", 2*time.Second))

	h.session.Stop()

	_, err := h.session.Transition(context.Background(), "o1", orders.StatusPreparing, orders.TransitionExtra{})
	assert.ErrorIs(t, err, ErrStopped)
	_, err = h.session.View(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.True(t, h.listener.has("alarm:false"))
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{DisplayID: "x", Store: newFakeStore(), Settings: settings.Display{PrintMode: "fax", PaperWidth: 80}})
	assert.Error(t, err)
}

func TestAcceptRaisesFreshPromptWhenAutoPrintDisabled(t *testing.T) {
	h := startSession(t, false, kitchenOrder("o1", orders.StatusReceived))
	require.True(t, h.listener.waitFor("prompt:o1", 2*time.Second))

	_, err := h.session.Transition(context.Background(), "o1", orders.StatusPreparing, orders.TransitionExtra{PrepMinutes: 15})
	require.NoError(t, err)

	eventually(t, func() bool { return h.listener.countOf("prompt:o1") == 2 }, "accept did not raise a fresh prompt")
	h.listener.mu.Lock()
	events := append([]string(nil), h.listener.events...)
	fresh := h.listener.prompts[1]
	h.listener.mu.Unlock()

	withdrawnAt, secondPromptAt := -1, -1
	for i, ev := range events {
		switch {
		case ev == "withdrawn:o1" && withdrawnAt < 0:
			withdrawnAt = i
		case ev == "prompt:o1":
			secondPromptAt = i
		}
	}
	require.GreaterOrEqual(t, withdrawnAt, 0)
	assert.Greater(t, secondPromptAt, withdrawnAt, "last prompt signal must be the fresh prompt")

	v, err := h.session.View(context.Background())
	require.NoError(t, err)
	require.Len(t, v.Prompts, 1)
	assert.Equal(t, fresh.ID, v.Prompts[0].ID)

	_, err = h.session.AcceptPrompt(context.Background(), fresh.ID)
	require.NoError(t, err)
	require.True(t, h.listener.waitFor("print:o1:ok", 2*time.Second))
	assert.Equal(t, 1, h.transport.count("o1"))
}

func TestPushDuringPullTriggersAnotherPull(t *testing.T) {
	gs := &gatedStore{fakeStore: newFakeStore(), gate: make(chan struct{})}
	h := startSessionWith(t, false, func(c *Config) {
		c.Store = gs
		c.PullInterval = time.Minute
		c.FeedThrottle = time.Minute
	})
	eventually(t, func() bool { return gs.pulls.Load() == 1 }, "initial pull not started")

	o := kitchenOrder("o2", orders.StatusReceived)
	gs.put(o)
	h.push.send(orderstore.Event{Kind: orderstore.OrderCreated, Order: o})
	require.True(t, h.listener.waitFor("orders:1", 2*time.Second))

	close(gs.gate)
	eventually(t, func() bool { return gs.pulls.Load() == 2 }, "push-triggered pull was throttled")

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 2, gs.pulls.Load())
}
