// Package session runs one display: it owns the display's feed, printed
// set, alarm and auto-print state and mutates them from a single loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"kitchenedge/alarm"
	"kitchenedge/autoprint"
	"kitchenedge/feed"
	"kitchenedge/orders"
	"kitchenedge/orderstore"
	"kitchenedge/printing"
	"kitchenedge/settings"
)

var (
	ErrStopped       = errors.New("session stopped")
	ErrOrderNotFound = errors.New("order not on this display")
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...any)

// Listener receives the session's outbound notifications. Calls are made
// from the session loop and must not block.
type Listener interface {
	OrdersChanged(list []*orders.Order)
	AlarmStateChanged(active bool)
	PrintOutcome(job printing.Job)
	PromptRaised(p autoprint.Prompt)
	PromptWithdrawn(p autoprint.Prompt)
}

// Config holds what a session needs to start.
type Config struct {
	DisplayID  string
	Store      orderstore.Store
	Push       orderstore.PushSource
	Transports []printing.Transport
	Settings   settings.Display
	Profile    orders.RestaurantProfile
	Alerter    alarm.Alerter
	Listener   Listener

	PullInterval    time.Duration
	FeedThrottle    time.Duration
	StaleAfter      time.Duration
	AlarmInterval   time.Duration
	AlarmPulses     int
	DedupWindow     time.Duration
	InFlightTimeout time.Duration
	CommitTimeout   time.Duration

	LogFunc LogFunc
	Debug   bool
}

const (
	defaultPullInterval  = 15 * time.Second
	defaultCommitTimeout = 10 * time.Second
	tickEvery            = 250 * time.Millisecond
	taskQueueSize        = 256
)

// View is a point-in-time copy of the session state.
type View struct {
	DisplayID   string             `json:"display_id"`
	Orders      []*orders.Order    `json:"orders"`
	Printed     []string           `json:"printed"`
	AlarmActive bool               `json:"alarm_active"`
	Prompts     []autoprint.Prompt `json:"prompts"`
	Stale       bool               `json:"stale"`
}

// Session is one running display. All state below the loop marker is owned
// by the loop goroutine.
type Session struct {
	id       string
	cfg      Config
	mode     printing.Mode
	logFn    LogFunc
	debugFn  LogFunc
	listener Listener

	disp *printing.Dispatcher

	tasks    chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time

	// loop-owned
	feed        *feed.Feed
	alarm       *alarm.Controller
	auto        *autoprint.Coordinator
	printed     map[string]bool
	lastPull    time.Time
	pulling     bool
	pullPending bool
	staleLogged bool
}

// New validates cfg and builds a session. Call Start to run it.
func New(cfg Config) (*Session, error) {
	if cfg.DisplayID == "" {
		return nil, fmt.Errorf("session: display id required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session %s: order store required", cfg.DisplayID)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: settings: %w", cfg.DisplayID, err)
	}
	mode, _ := cfg.Settings.Mode()
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = defaultPullInterval
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = defaultCommitTimeout
	}

	logFn := cfg.LogFunc
	if logFn == nil {
		logFn = func(string, ...any) {}
	}
	debugFn := LogFunc(func(string, ...any) {})
	if cfg.Debug {
		debugFn = logFn
	}
	listener := cfg.Listener
	if listener == nil {
		listener = nopListener{}
	}

	s := &Session{
		id:       cfg.DisplayID,
		cfg:      cfg,
		mode:     mode,
		logFn:    logFn,
		debugFn:  debugFn,
		listener: listener,
		tasks:    make(chan func(), taskQueueSize),
		done:     make(chan struct{}),
		now:      time.Now,
		printed:  make(map[string]bool),
	}

	s.feed = feed.New(feed.Config{Throttle: cfg.FeedThrottle, StaleAfter: cfg.StaleAfter})
	s.feed.DebugLog = debugFn
	s.alarm = alarm.New(cfg.Alerter, alarm.Config{Interval: cfg.AlarmInterval, Pulses: cfg.AlarmPulses})
	s.alarm.DebugLog = debugFn
	s.auto = autoprint.New(
		autoprint.Settings{Enabled: cfg.Settings.AutoPrint, Mode: mode},
		autoPrinter{s}, listener, s.isPrinted,
	)
	s.disp = printing.NewDispatcher(cfg.Store, printedMarker{s}, printing.Config{
		Profile:         cfg.Profile,
		Receipt:         cfg.Settings.ReceiptOptions(),
		DedupWindow:     cfg.DedupWindow,
		InFlightTimeout: cfg.InFlightTimeout,
	}, cfg.Transports...)
	s.disp.DebugLog = debugFn
	return s, nil
}

// ID returns the display id.
func (s *Session) ID() string { return s.id }

// Settings returns the settings the session was started with.
func (s *Session) Settings() settings.Display { return s.cfg.Settings }

// Start runs the loop, the initial pull and the push subscription.
func (s *Session) Start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)
	s.feed.Reset(s.now())
	go s.run()
	s.post(func() { s.requestPull() })

	if s.cfg.Push != nil {
		go func() {
			err := s.cfg.Push.Subscribe(s.ctx, func(ev orderstore.Event) {
				s.post(func() { s.onPush(ev) })
			})
			if err != nil && s.ctx.Err() == nil {
				log.Printf("session %s: push subscription: %v", s.id, err)
			}
		}()
	}
	s.logFn("session %s started (auto_print=%v mode=%s)", s.id, s.cfg.Settings.AutoPrint, s.mode)
}

// Stop ends the loop and discards the session state.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		} else {
			close(s.done)
		}
		s.logFn("session %s stopped", s.id)
	})
}

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) run() {
	defer close(s.done)
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case fn := <-s.tasks:
			s.exec(fn)
		case <-ticker.C:
			s.exec(s.onTick)
		}
	}
}

// exec runs one task to completion. A panic is logged and the loop carries on.
func (s *Session) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session %s: task panic: %v\n%s", s.id, r, debug.Stack())
		}
	}()
	fn()
}

func (s *Session) shutdown() {
	if s.alarm.Active() {
		s.alarm.Stop()
		s.listener.AlarmStateChanged(false)
	}
}

// post queues fn on the loop. It reports false once the session has stopped.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.tasks <- fn:
		return true
	case <-s.done:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !s.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) onTick() {
	now := s.now()
	s.alarm.Tick(now)

	if s.feed.Stale(now) {
		if !s.staleLogged {
			s.debugFn("session %s: push channel quiet, relying on pulls", s.id)
			s.staleLogged = true
		}
	} else {
		s.staleLogged = false
	}

	if now.Sub(s.lastPull) >= s.cfg.PullInterval {
		s.requestPull()
	}
}

func (s *Session) onPush(ev orderstore.Event) {
	now := s.now()
	if ev.Kind == orderstore.Keepalive || ev.Order == nil {
		s.feed.Heard(now)
		return
	}
	events, changed := s.feed.ApplyPush(feed.PushKind(ev.Kind), ev.Order, now)
	s.apply(events, changed)
	s.requestPull()
}

// requestPull starts a pull unless one is running or the throttle holds it.
func (s *Session) requestPull() {
	if s.pulling {
		s.pullPending = true
		return
	}
	now := s.now()
	s.lastPull = now
	if !s.feed.ShouldPull(now) {
		s.debugFn("session %s: pull throttled", s.id)
		return
	}
	s.feed.PullStarted()
	s.pulling = true
	go func() {
		list, err := s.cfg.Store.ListOpenOrders(s.ctx)
		s.post(func() { s.onPulled(list, err) })
	}()
}

func (s *Session) onPulled(list []*orders.Order, err error) {
	s.pulling = false
	if err != nil {
		if s.ctx.Err() == nil {
			log.Printf("session %s: pull open orders: %v", s.id, err)
		}
	} else {
		s.feed.PullCompleted(s.now())
		events, changed := s.feed.ApplySnapshot(list)
		s.apply(events, changed)
	}
	if s.pullPending {
		s.pullPending = false
		s.requestPull()
	}
}

// apply routes feed events to the printed set and auto-print, then
// refreshes the host and the alarm.
func (s *Session) apply(events []feed.Event, changed bool) {
	for _, ev := range events {
		switch ev.Kind {
		case feed.Arrived:
			if ev.Order.Status != orders.StatusReceived {
				s.printed[ev.Order.ID] = true
			}
			s.auto.OnOrderArrived(ev.Order)
		case feed.StatusChanged:
			s.debugFn("session %s: order %s %s -> %s", s.id, ev.Order.ID, ev.From, ev.Order.Status)
			s.auto.OnStatusChanged(ev.Order.ID)
		}
	}
	if !changed {
		return
	}
	s.listener.OrdersChanged(s.feed.Orders())
	if s.alarm.Observe(s.feed.Awaiting(), s.now()) {
		s.listener.AlarmStateChanged(s.alarm.Active())
	}
}

func (s *Session) isPrinted(id string) bool { return s.printed[id] }

// Transition validates and commits an operator status change, then applies
// it locally without waiting for the next pull.
func (s *Session) Transition(ctx context.Context, orderID string, target orders.Status, extra orders.TransitionExtra) (orders.Status, error) {
	if err := extra.Validate(target); err != nil {
		return "", err
	}

	var cur *orders.Order
	if err := s.do(ctx, func() { cur, _ = s.feed.Get(orderID) }); err != nil {
		return "", err
	}
	if cur == nil {
		return "", ErrOrderNotFound
	}
	next, err := orders.RequestTransition(cur, target)
	if err != nil {
		return "", err
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
	defer cancel()
	if err := s.cfg.Store.RequestStatusChange(cctx, orderID, next, extra); err != nil {
		return "", fmt.Errorf("commit %s -> %s: %w", orderID, next, err)
	}

	pickup := extra.PickupTime(s.now())
	err = s.do(ctx, func() {
		events, changed := s.feed.ApplyLocal(orderID, next, pickup)
		s.apply(events, changed)
		if next == orders.StatusPreparing {
			s.auto.OnAccepted(orderID)
		}
	})
	return next, err
}

// Print prints an order on operator request and waits for the outcome.
func (s *Session) Print(ctx context.Context, orderID string, mode printing.Mode, opts printing.PrintOptions) (printing.Job, error) {
	select {
	case <-s.done:
		return printing.Job{}, ErrStopped
	default:
	}
	if mode == "" {
		mode = s.mode
	}
	job := s.disp.Print(ctx, orderID, mode, opts)
	s.post(func() { s.listener.PrintOutcome(job) })
	return job, nil
}

// AcceptPrompt resolves a prompt and prints its order.
func (s *Session) AcceptPrompt(ctx context.Context, promptID string) (autoprint.Prompt, error) {
	var p autoprint.Prompt
	var perr error
	if err := s.do(ctx, func() { p, perr = s.auto.AcceptPrompt(promptID) }); err != nil {
		return p, err
	}
	return p, perr
}

// DismissPrompt resolves a prompt without printing.
func (s *Session) DismissPrompt(ctx context.Context, promptID string) (autoprint.Prompt, error) {
	var p autoprint.Prompt
	var perr error
	if err := s.do(ctx, func() { p, perr = s.auto.DismissPrompt(promptID) }); err != nil {
		return p, err
	}
	return p, perr
}

// View copies the current state.
func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, func() {
		v = View{
			DisplayID:   s.id,
			Orders:      s.feed.Orders(),
			AlarmActive: s.alarm.Active(),
			Prompts:     s.auto.Prompts(),
			Stale:       s.feed.Stale(s.now()),
		}
		for id := range s.printed {
			v.Printed = append(v.Printed, id)
		}
	})
	return v, err
}

// autoPrinter runs coordinator print requests off the loop.
type autoPrinter struct{ s *Session }

func (a autoPrinter) RequestPrint(orderID string, mode printing.Mode, mark bool) {
	s := a.s
	s.debugFn("session %s: auto-print %s via %s", s.id, orderID, mode)
	go func() {
		job := s.disp.Print(s.ctx, orderID, mode, printing.PrintOptions{MarkAsPrinted: printing.Bool(mark)})
		s.post(func() {
			s.auto.PrintFinished(orderID, job.Outcome.Success())
			s.listener.PrintOutcome(job)
		})
	}()
}

// printedMarker records successful prints into the loop-owned set.
type printedMarker struct{ s *Session }

func (m printedMarker) MarkPrinted(orderID string) {
	m.s.post(func() { m.s.printed[orderID] = true })
}

type nopListener struct{}

func (nopListener) OrdersChanged([]*orders.Order)    {}
func (nopListener) AlarmStateChanged(bool)           {}
func (nopListener) PrintOutcome(printing.Job)        {}
func (nopListener) PromptRaised(autoprint.Prompt)    {}
func (nopListener) PromptWithdrawn(autoprint.Prompt) {}
