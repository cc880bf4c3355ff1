package www

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"kitchenedge/printing"
)

var ErrUnknownJob = errors.New("print job not pending")

// Ack is the tablet's answer to a print job.
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HostBridge hands system-dialog and direct-thermal jobs to the tablets
// over the SSE stream and waits for their acknowledgement.
type HostBridge struct {
	hub     *EventHub
	timeout time.Duration
	scheme  string

	mu      sync.Mutex
	pending map[string]chan Ack
}

// NewHostBridge creates a bridge. scheme names the URL scheme the thermal
// companion app registers.
func NewHostBridge(hub *EventHub, timeout time.Duration, scheme string) *HostBridge {
	return &HostBridge{hub: hub, timeout: timeout, scheme: scheme, pending: make(map[string]chan Ack)}
}

// ForDisplay returns the printing.Host for one display.
func (b *HostBridge) ForDisplay(display string) printing.Host {
	return &displayHost{bridge: b, display: display}
}

// Ack resolves a pending job.
func (b *HostBridge) Ack(jobID string, ack Ack) error {
	b.mu.Lock()
	ch, ok := b.pending[jobID]
	delete(b.pending, jobID)
	b.mu.Unlock()
	if !ok {
		return ErrUnknownJob
	}
	ch <- ack
	return nil
}

// Pending returns the number of jobs awaiting acknowledgement.
func (b *HostBridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

type printJobEvent struct {
	printing.HostJob
	LaunchURL string `json:"launch_url,omitempty"`
}

type displayHost struct {
	bridge  *HostBridge
	display string
}

func (h *displayHost) Deliver(ctx context.Context, job printing.HostJob) error {
	b := h.bridge
	ch := make(chan Ack, 1)
	b.mu.Lock()
	b.pending[job.ID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, job.ID)
		b.mu.Unlock()
	}()

	evt := printJobEvent{HostJob: job}
	if job.Mode == printing.ModeDirectThermal && b.scheme != "" {
		evt.LaunchURL = fmt.Sprintf("%s://print?job=%s", b.scheme, url.QueryEscape(job.ID))
	}
	if b.hub.Publish(h.display, SSEEvent{Type: "print-job", Data: evt}) == 0 {
		return printing.Unavailable(job.Mode, errNoDisplay.Error(), nil)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case ack := <-ch:
		if ack.OK {
			return nil
		}
		reason := ack.Error
		if reason == "" {
			reason = "tablet reported a print failure"
		}
		return printing.Unavailable(job.Mode, reason, nil)
	case <-timer.C:
		return printing.Unavailable(job.Mode, "tablet did not confirm the print", nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}
