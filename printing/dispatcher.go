package printing

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"kitchenedge/orders"
	"kitchenedge/receipt"
)

const (
	DefaultDedupWindow     = 2 * time.Second
	DefaultInFlightTimeout = 30 * time.Second
)

// Config holds the per-session inputs the dispatcher renders with.
type Config struct {
	Profile         orders.RestaurantProfile
	Receipt         receipt.Options
	DedupWindow     time.Duration
	InFlightTimeout time.Duration
}

type dedupEntry struct {
	at  time.Time
	job Job
}

// Dispatcher renders, encodes and sends receipts for one session.
// At most one call per order id is in flight; concurrent duplicates share
// its result.
type Dispatcher struct {
	source     OrderSource
	marker     PrintedMarker
	transports map[Mode]Transport
	cfg        Config

	group singleflight.Group

	mu     sync.Mutex
	recent map[[32]byte]dedupEntry

	now      func() time.Time
	DebugLog func(format string, args ...any)
}

// NewDispatcher creates a dispatcher. marker may be nil.
func NewDispatcher(source OrderSource, marker PrintedMarker, cfg Config, transports ...Transport) *Dispatcher {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.InFlightTimeout <= 0 {
		cfg.InFlightTimeout = DefaultInFlightTimeout
	}
	d := &Dispatcher{
		source:     source,
		marker:     marker,
		transports: make(map[Mode]Transport, len(transports)),
		cfg:        cfg,
		recent:     make(map[[32]byte]dedupEntry),
		now:        time.Now,
	}
	for _, t := range transports {
		if t != nil {
			d.transports[t.Mode()] = t
		}
	}
	return d
}

func (d *Dispatcher) debug(format string, args ...any) {
	if fn := d.DebugLog; fn != nil {
		fn(format, args...)
	}
}

// Configured reports whether a transport is registered for mode.
func (d *Dispatcher) Configured(mode Mode) bool {
	_, ok := d.transports[mode]
	return ok
}

// Print fetches, renders and sends the receipt for orderID. It never retries.
// The caller's ctx only bounds how long the caller waits; the shared attempt
// is bounded by the in-flight timeout.
//
// A call that arrives while a print of the same order is in flight joins it
// and gets its Job. The joining caller's mode and MarkAsPrinted are ignored:
// the first caller's attempt decides both, and the duplicate is a no-op.
func (d *Dispatcher) Print(ctx context.Context, orderID string, mode Mode, opts PrintOptions) Job {
	started := d.now()
	ch := d.group.DoChan(orderID, func() (any, error) {
		job := d.attempt(orderID, mode)
		if job.Outcome.Success() && !job.Outcome.Deduplicated && opts.mark() && d.marker != nil {
			d.marker.MarkPrinted(orderID)
		}
		return job, nil
	})

	timer := time.NewTimer(d.cfg.InFlightTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		job := res.Val.(Job)
		if res.Shared {
			d.debug("print %s: joined in-flight attempt", orderID)
		}
		return job
	case <-timer.C:
		d.group.Forget(orderID)
		log.Printf("print %s via %s: no response after %s", orderID, mode, d.cfg.InFlightTimeout)
		return Job{OrderID: orderID, Mode: mode, AttemptedAt: started, Outcome: Outcome{
			Err: &Error{Kind: KindTransportUnavailable, Transport: mode, OrderID: orderID, Reason: "printer timed out"},
		}}
	case <-ctx.Done():
		return Job{OrderID: orderID, Mode: mode, AttemptedAt: started, Outcome: Outcome{
			Err: &Error{Kind: KindTransportUnavailable, Transport: mode, OrderID: orderID, Reason: "print cancelled", Err: ctx.Err()},
		}}
	}
}

func (d *Dispatcher) attempt(orderID string, mode Mode) Job {
	job := Job{OrderID: orderID, Mode: mode, AttemptedAt: d.now()}
	fail := func(kind Kind, reason string, err error) Job {
		job.Outcome.Err = &Error{Kind: kind, Transport: mode, OrderID: orderID, Reason: reason, Err: err}
		return job
	}

	t, ok := d.transports[mode]
	if !ok {
		return fail(KindNotConfigured, fmt.Sprintf("%s printing is not set up on this display", mode), nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.InFlightTimeout)
	defer cancel()

	if d.source == nil {
		return fail(KindRenderFailure, "order details unavailable", nil)
	}
	order, err := d.source.GetOrder(ctx, orderID)
	if err != nil {
		return fail(KindRenderFailure, "order details unavailable", err)
	}
	doc, err := receipt.Render(order, d.cfg.Profile, d.cfg.Receipt)
	if err != nil {
		return fail(KindRenderFailure, "receipt could not be rendered", err)
	}
	payload, err := receipt.Encode(doc, t.Encoding())
	if err != nil {
		return fail(KindRenderFailure, "receipt could not be encoded", err)
	}

	key := fingerprint(mode, payload.Body)
	if prev, ok := d.lookup(key); ok {
		d.debug("print %s via %s: suppressed duplicate of %s", orderID, mode, prev.AttemptedAt.Format(time.RFC3339Nano))
		prev.Outcome.Deduplicated = true
		return prev
	}

	if err := t.Print(ctx, payload); err != nil {
		job.Outcome.Err = classify(orderID, mode, err)
		log.Printf("print %s via %s failed: %v", orderID, mode, err)
		return job
	}
	d.remember(key, job)
	return job
}

// fingerprint identifies one physical transport action.
func fingerprint(mode Mode, body []byte) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write(body)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (d *Dispatcher) lookup(key [32]byte) (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, e := range d.recent {
		if now.Sub(e.at) >= d.cfg.DedupWindow {
			delete(d.recent, k)
		}
	}
	e, ok := d.recent[key]
	return e.job, ok
}

// remember records successful actions only; a failed attempt can be retried
// by the operator straight away.
func (d *Dispatcher) remember(key [32]byte, job Job) {
	d.mu.Lock()
	d.recent[key] = dedupEntry{at: d.now(), job: job}
	d.mu.Unlock()
}
