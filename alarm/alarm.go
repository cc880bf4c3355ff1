package alarm

import "time"

const (
	DefaultInterval = 2500 * time.Millisecond
	DefaultPulses   = 3
)

// Alerter plays the attention signal on a display. Pulse is the short
// fallback used when Alert fails.
type Alerter interface {
	Alert() error
	Pulse() error
}

type Config struct {
	Interval time.Duration
	Pulses   int
}

// Controller repeats an alert while orders are waiting to be accepted.
// Not safe for concurrent use; the owning session drives it from its loop.
type Controller struct {
	alerter  Alerter
	interval time.Duration
	pulses   int

	active    bool
	lastAlert time.Time

	DebugLog func(format string, args ...any)
}

func New(alerter Alerter, cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Pulses <= 0 {
		cfg.Pulses = DefaultPulses
	}
	return &Controller{alerter: alerter, interval: cfg.Interval, pulses: cfg.Pulses}
}

func (c *Controller) debug(format string, args ...any) {
	if fn := c.DebugLog; fn != nil {
		fn(format, args...)
	}
}

// Active reports whether the alarm is sounding.
func (c *Controller) Active() bool { return c.active }

// Observe updates the alarm from the number of awaiting orders and reports
// whether the active state flipped. Activation alerts immediately.
func (c *Controller) Observe(awaiting int, now time.Time) bool {
	switch {
	case awaiting > 0 && !c.active:
		c.active = true
		c.fire(now)
		return true
	case awaiting <= 0 && c.active:
		c.active = false
		c.lastAlert = time.Time{}
		return true
	}
	return false
}

// Tick repeats the alert once the interval has passed since the last one.
func (c *Controller) Tick(now time.Time) {
	if !c.active {
		return
	}
	if now.Sub(c.lastAlert) >= c.interval {
		c.fire(now)
	}
}

// Stop silences the alarm without an alert.
func (c *Controller) Stop() {
	c.active = false
	c.lastAlert = time.Time{}
}

func (c *Controller) fire(now time.Time) {
	c.lastAlert = now
	if c.alerter == nil {
		return
	}
	err := c.alerter.Alert()
	if err == nil {
		return
	}
	c.debug("alarm: alert failed: %v; falling back to pulses", err)
	for i := 0; i < c.pulses; i++ {
		if perr := c.alerter.Pulse(); perr != nil {
			c.debug("alarm: pulse failed: %v", perr)
			return
		}
	}
}
