package alarm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingAlerter struct {
	alerts, pulses int
	alertErr       error
	pulseErr       error
}

func (r *recordingAlerter) Alert() error {
	r.alerts++
	return r.alertErr
}

func (r *recordingAlerter) Pulse() error {
	r.pulses++
	return r.pulseErr
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestActivationAlertsImmediately(t *testing.T) {
	a := &recordingAlerter{}
	c := New(a, Config{})

	assert.True(t, c.Observe(2, t0))
	assert.True(t, c.Active())
	assert.Equal(t, 1, a.alerts)

	// more awaiting orders do not re-trigger
	assert.False(t, c.Observe(3, t0.Add(time.Second)))
	assert.Equal(t, 1, a.alerts)
}

func TestRepeatsEveryInterval(t *testing.T) {
	a := &recordingAlerter{}
	c := New(a, Config{})
	c.Observe(1, t0)

	c.Tick(t0.Add(time.Second))
	assert.Equal(t, 1, a.alerts)
	c.Tick(t0.Add(2500 * time.Millisecond))
	assert.Equal(t, 2, a.alerts)
	c.Tick(t0.Add(4 * time.Second))
	assert.Equal(t, 2, a.alerts)
	c.Tick(t0.Add(5 * time.Second))
	assert.Equal(t, 3, a.alerts)
}

func TestStopsWithoutTrailingAlert(t *testing.T) {
	a := &recordingAlerter{}
	c := New(a, Config{})
	c.Observe(1, t0)

	assert.True(t, c.Observe(0, t0.Add(time.Second)))
	assert.False(t, c.Active())

	c.Tick(t0.Add(10 * time.Second))
	assert.Equal(t, 1, a.alerts)
	assert.False(t, c.Observe(0, t0.Add(11*time.Second)))
}

func TestFallbackPulses(t *testing.T) {
	a := &recordingAlerter{alertErr: errors.New("audio blocked")}
	c := New(a, Config{})

	c.Observe(1, t0)

	assert.Equal(t, 1, a.alerts)
	assert.Equal(t, DefaultPulses, a.pulses)
}

func TestBothFailuresSilent(t *testing.T) {
	a := &recordingAlerter{alertErr: errors.New("audio blocked"), pulseErr: errors.New("no vibration")}
	var logged []string
	c := New(a, Config{})
	c.DebugLog = func(format string, args ...any) { logged = append(logged, format) }

	assert.NotPanics(t, func() { c.Observe(1, t0) })
	assert.True(t, c.Active())
	assert.Equal(t, 1, a.pulses)
	assert.Len(t, logged, 2)
}

func TestStop(t *testing.T) {
	a := &recordingAlerter{}
	c := New(a, Config{Interval: time.Second})
	c.Observe(1, t0)
	c.Stop()
	c.Tick(t0.Add(time.Minute))
	assert.Equal(t, 1, a.alerts)

	// a later arrival re-activates
	assert.True(t, c.Observe(1, t0.Add(2*time.Minute)))
	assert.Equal(t, 2, a.alerts)
}
