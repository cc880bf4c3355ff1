package www

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"kitchenedge/engine"
)

// SSEEvent is the typed envelope sent to SSE clients.
type SSEEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type sseClient struct {
	display string
	events  chan SSEEvent
}

// EventHub fans events out to the SSE clients of each display.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[*sseClient]struct{}
	stopChan  chan struct{}
	keepalive time.Duration
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[*sseClient]struct{}),
		stopChan:  make(chan struct{}),
		keepalive: 30 * time.Second,
	}
}

// Stop disconnects every client.
func (h *EventHub) Stop() {
	select {
	case <-h.stopChan:
	default:
		close(h.stopChan)
	}
}

// Publish sends evt to every client of display and returns how many
// clients took it. A client with a full buffer misses the event.
func (h *EventHub) Publish(display string, evt SSEEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.display != display {
			continue
		}
		select {
		case c.events <- evt:
			n++
		default:
		}
	}
	return n
}

// Connected returns the number of clients attached to display.
func (h *EventHub) Connected(display string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.display == display {
			n++
		}
	}
	return n
}

func (h *EventHub) register(c *sseClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *EventHub) unregister(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeDisplay streams the display's events to w until the client goes
// away. initial, when set, is written right after the connected event.
func (h *EventHub) ServeDisplay(w http.ResponseWriter, r *http.Request, display string, initial *SSEEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := &sseClient{display: display, events: make(chan SSEEvent, 64)}
	h.register(client)
	defer h.unregister(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"display\":%q}\n\n", display)
	if initial != nil {
		writeEvent(w, *initial)
	}
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.stopChan:
			return
		case evt := <-client.events:
			writeEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, evt SSEEvent) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		log.Printf("sse: encode %s: %v", evt.Type, err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
}

// SetupEngineListeners forwards every engine event to its display's clients.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.Subscribe(func(evt engine.Event) {
		if evt.Payload == nil {
			return
		}
		h.Publish(evt.Payload.Display(), SSEEvent{Type: evt.Type.String(), Data: evt.Payload})
	})
	log.Printf("SSE listeners wired to engine events")
}

// Alerter returns the alarm sink for display.
func (h *EventHub) Alerter(display string) *DisplayAlerter {
	return &DisplayAlerter{hub: h, display: display}
}

var errNoDisplay = errors.New("no display connected")

// DisplayAlerter sounds the alarm on the display's tablets.
type DisplayAlerter struct {
	hub     *EventHub
	display string
}

func (a *DisplayAlerter) Alert() error { return a.send("alarm") }
func (a *DisplayAlerter) Pulse() error { return a.send("alarm-pulse") }

func (a *DisplayAlerter) send(kind string) error {
	if a.hub.Publish(a.display, SSEEvent{Type: kind, Data: map[string]string{"display_id": a.display}}) == 0 {
		return errNoDisplay
	}
	return nil
}
