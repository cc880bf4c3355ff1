// Package engine hosts the display sessions of one kitchen station and
// fans their notifications out on a shared EventBus.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"kitchenedge/alarm"
	"kitchenedge/config"
	"kitchenedge/orderstore"
	"kitchenedge/printing"
	"kitchenedge/protocol"
	"kitchenedge/session"
	"kitchenedge/settings"
)

var (
	ErrUnknownDisplay = errors.New("display not running")
	ErrDisplayRunning = errors.New("display already running")
	ErrEngineStopped  = errors.New("engine stopped")
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...any)

// HostFactory returns the tablet host for a display's system-dialog and
// direct-thermal transports.
type HostFactory func(displayID string) printing.Host

// AlerterFactory returns the alarm sink for a display.
type AlerterFactory func(displayID string) alarm.Alerter

// Engine owns the running sessions.
type Engine struct {
	cfg      *config.Config
	store    orderstore.Store
	push     orderstore.PushSource
	settings settings.Store
	hosts    HostFactory
	alerters AlerterFactory
	relay    printing.Publisher
	logFn    LogFunc
	debugFn  LogFunc
	debug    bool

	mu       sync.RWMutex
	sessions map[string]*session.Session
	ctx      context.Context
	cancel   context.CancelFunc

	statsMu sync.Mutex
	stats   map[string]*protocol.DisplayStatus

	Events *EventBus
}

// Config holds the parameters needed to create an Engine.
type Config struct {
	AppConfig *config.Config
	Store     orderstore.Store
	Push      orderstore.PushSource
	Settings  settings.Store
	Hosts     HostFactory
	Alerters  AlerterFactory
	// Relay carries bluetooth print jobs. Nil leaves bluetooth unconfigured.
	Relay     printing.Publisher
	LogFunc   LogFunc
	Debug     bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...any) {}
	}
	debugFn := LogFunc(func(string, ...any) {})
	if c.Debug {
		debugFn = logFn
	}
	st := c.Settings
	if st == nil {
		st = settings.NewMemoryStore(c.AppConfig.Display)
	}
	e := &Engine{
		cfg:      c.AppConfig,
		store:    c.Store,
		push:     c.Push,
		settings: st,
		hosts:    c.Hosts,
		alerters: c.Alerters,
		relay:    c.Relay,
		logFn:    logFn,
		debugFn:  debugFn,
		debug:    c.Debug,
		sessions: make(map[string]*session.Session),
		stats:    make(map[string]*protocol.DisplayStatus),
		Events:   NewEventBus(),
	}
	e.wireEventHandlers()
	return e
}

// Start starts a session for every configured display. A display that
// fails to start is logged and skipped.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	for _, id := range e.cfg.Displays {
		if err := e.StartDisplay(id); err != nil {
			log.Printf("start display %s: %v", id, err)
		}
	}
	e.logFn("Engine started: station=%s displays=%d", e.cfg.StationID, len(e.Displays()))
}

// StartDisplay loads the display's settings and starts its session.
func (e *Engine) StartDisplay(displayID string) error {
	s, mode, err := e.startSession(displayID)
	if err != nil {
		return err
	}
	go func() {
		<-s.Done()
		e.forget(displayID, s)
		e.Events.Emit(Event{Type: EventSessionStopped, Payload: SessionEvent{DisplayID: displayID}})
	}()
	e.Events.Emit(Event{Type: EventSessionStarted, Payload: SessionEvent{DisplayID: displayID, Reason: mode}})
	return nil
}

func (e *Engine) startSession(displayID string) (*session.Session, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil || e.ctx.Err() != nil {
		return nil, "", ErrEngineStopped
	}
	if _, ok := e.sessions[displayID]; ok {
		return nil, "", ErrDisplayRunning
	}

	st, err := e.settings.Get(e.ctx, displayID)
	if err != nil {
		return nil, "", err
	}
	s, err := session.New(e.sessionConfig(displayID, st))
	if err != nil {
		return nil, "", err
	}
	s.Start(e.ctx)
	e.sessions[displayID] = s
	return s, st.PrintMode, nil
}

func (e *Engine) forget(displayID string, s *session.Session) {
	e.mu.Lock()
	if e.sessions[displayID] == s {
		delete(e.sessions, displayID)
	}
	e.mu.Unlock()
}

func (e *Engine) sessionConfig(displayID string, st settings.Display) session.Config {
	var alerter alarm.Alerter
	if e.alerters != nil {
		alerter = e.alerters(displayID)
	}
	logFn := e.logFn
	return session.Config{
		DisplayID:       displayID,
		Store:           e.store,
		Push:            e.push,
		Transports:      e.transports(displayID, st),
		Settings:        st,
		Profile:         e.cfg.Restaurant,
		Alerter:         alerter,
		Listener:        &sessionEmitter{bus: e.Events, displayID: displayID},
		PullInterval:    e.cfg.Feed.PullInterval,
		FeedThrottle:    e.cfg.Feed.Throttle,
		StaleAfter:      e.cfg.Feed.StaleAfter,
		AlarmInterval:   e.cfg.Alarm.Interval,
		AlarmPulses:     e.cfg.Alarm.Pulses,
		DedupWindow:     e.cfg.Print.DedupWindow,
		InFlightTimeout: e.cfg.Print.InFlightTimeout,
		CommitTimeout:   e.cfg.OrderStore.Timeout,
		LogFunc:         session.LogFunc(logFn),
		Debug:           e.debug,
	}
}

// transports builds every transport the display can reach. Modes left out
// fail with printing.ErrTransportNotConfigured.
func (e *Engine) transports(displayID string, st settings.Display) []printing.Transport {
	var list []printing.Transport
	if e.hosts != nil {
		host := e.hosts(displayID)
		list = append(list, printing.NewSystemDialogTransport(host), printing.NewDirectThermalTransport(host))
	}
	if e.cfg.Print.BridgeURL != "" {
		list = append(list, printing.NewBridgeTransport(e.cfg.Print.BridgeURL, e.cfg.Print.BridgeTimeout))
	}
	if e.relay != nil && st.BluetoothDevice != "" {
		list = append(list, printing.NewBluetoothTransport(e.relay, e.cfg.Print.BluetoothTopicPrefix, st.BluetoothDevice))
	}
	return list
}

// StopDisplay stops a display's session and waits for it to exit.
func (e *Engine) StopDisplay(displayID string) error {
	e.mu.RLock()
	s, ok := e.sessions[displayID]
	e.mu.RUnlock()
	if !ok {
		return ErrUnknownDisplay
	}
	s.Stop()
	e.forget(displayID, s)
	return nil
}

// RestartDisplay stops a running display and starts it again with its
// current settings.
func (e *Engine) RestartDisplay(displayID string) error {
	if err := e.StopDisplay(displayID); err != nil && !errors.Is(err, ErrUnknownDisplay) {
		return err
	}
	return e.StartDisplay(displayID)
}

// Session returns the running session for a display.
func (e *Engine) Session(displayID string) (*session.Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[displayID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDisplay, displayID)
	}
	return s, nil
}

// Displays returns the ids of running displays, sorted.
func (e *Engine) Displays() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Settings returns the settings store.
func (e *Engine) Settings() settings.Store { return e.settings }

// AppConfig returns the app config.
func (e *Engine) AppConfig() *config.Config { return e.cfg }

// DisplayStatuses summarizes each running display for the heartbeat.
func (e *Engine) DisplayStatuses() []protocol.DisplayStatus {
	out := make([]protocol.DisplayStatus, 0)
	for _, id := range e.Displays() {
		e.statsMu.Lock()
		st := protocol.DisplayStatus{DisplayID: id}
		if cur, ok := e.stats[id]; ok {
			st = *cur
		}
		e.statsMu.Unlock()

		if s, err := e.Session(id); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			if v, err := s.View(ctx); err == nil {
				st.Stale = v.Stale
			}
			cancel()
		}
		out = append(out, st)
	}
	return out
}

// Stop stops every session and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	running := make([]*session.Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		running = append(running, s)
	}
	e.mu.Unlock()

	for _, s := range running {
		s.Stop()
		<-s.Done()
	}
	e.logFn("Engine stopped")
}

func (e *Engine) statusFor(displayID string) *protocol.DisplayStatus {
	st, ok := e.stats[displayID]
	if !ok {
		st = &protocol.DisplayStatus{DisplayID: displayID}
		e.stats[displayID] = st
	}
	return st
}
