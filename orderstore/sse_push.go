package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"kitchenedge/orders"
)

// SSEPush subscribes to the order store's event stream.
type SSEPush struct {
	url        string
	httpClient *http.Client
	maxBackoff time.Duration
}

// NewSSEPush streams from baseURL + "/orders/events".
func NewSSEPush(baseURL string) *SSEPush {
	return &SSEPush{
		url:        strings.TrimRight(baseURL, "/") + "/orders/events",
		httpClient: &http.Client{},
		maxBackoff: 30 * time.Second,
	}
}

// Subscribe streams events to h and reconnects with capped exponential
// backoff until ctx is cancelled.
func (p *SSEPush) Subscribe(ctx context.Context, h PushHandler) error {
	attempt := 0
	for {
		connected, err := p.stream(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			attempt = 0
		}
		attempt++
		log.Printf("order events stream lost: %v", err)
		if !p.backoff(ctx, attempt) {
			return nil
		}
	}
}

func (p *SSEPush) stream(ctx context.Context, h PushHandler) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false, fmt.Errorf("SSE request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("SSE connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("SSE status %d", resp.StatusCode)
	}

	h(Event{Kind: Keepalive})
	r := NewSSEReader(resp.Body)
	for {
		raw, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return true, fmt.Errorf("stream closed")
			}
			return true, err
		}
		ev, ok := decodeSSE(raw)
		if !ok {
			continue
		}
		h(ev)
	}
}

// decodeSSE maps a wire event onto a push event. Unknown event names are
// dropped.
func decodeSSE(raw SSERawEvent) (Event, bool) {
	switch raw.Event {
	case "comment", "keepalive", "connected":
		return Event{Kind: Keepalive}, true
	case "order-created", "order.created":
		return decodeOrderEvent(OrderCreated, raw.Data)
	case "order-status-changed", "order.status_changed":
		return decodeOrderEvent(StatusChanged, raw.Data)
	}
	return Event{}, false
}

func decodeOrderEvent(kind EventKind, data string) (Event, bool) {
	var o orders.Order
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		log.Printf("order events: decode %s: %v", kind, err)
		return Event{}, false
	}
	if o.ID == "" {
		return Event{}, false
	}
	return Event{Kind: kind, Order: &o}, true
}

// backoff waits 1s * 2^(attempt-1) capped at maxBackoff, with ±20% jitter.
// It returns false if ctx ended first.
func (p *SSEPush) backoff(ctx context.Context, attempt int) bool {
	shift := attempt - 1
	if shift > 10 {
		shift = 10
	}
	base := time.Duration(1<<uint(shift)) * time.Second
	if base > p.maxBackoff {
		base = p.maxBackoff
	}
	wait := time.Duration(float64(base) * (0.8 + 0.4*rand.Float64()))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
