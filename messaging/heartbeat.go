package messaging

import (
	"log"
	"os"
	"sync"
	"time"

	"kitchenedge/protocol"
)

// EnvelopePublisher is the part of Client the heartbeater uses.
type EnvelopePublisher interface {
	PublishEnvelope(topic string, env interface{ Encode() ([]byte, error) }) error
}

// StatusFunc reports the running displays at heartbeat time.
type StatusFunc func() []protocol.DisplayStatus

// Heartbeater sends display.register on startup and display.heartbeat
// periodically.
type Heartbeater struct {
	client    EnvelopePublisher
	stationID string
	version   string
	topic     string
	interval  time.Duration
	status    StatusFunc
	startTime time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHeartbeater creates a heartbeater for the given station.
func NewHeartbeater(client EnvelopePublisher, stationID, version, topic string, interval time.Duration, status StatusFunc) *Heartbeater {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Heartbeater{
		client:    client,
		stationID: stationID,
		version:   version,
		topic:     topic,
		interval:  interval,
		status:    status,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start sends an initial registration and begins the heartbeat loop.
func (h *Heartbeater) Start() {
	h.startTime = time.Now()
	h.sendRegister()
	go h.loop()
}

// Stop halts the heartbeat loop and waits for it to exit.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.doneCh
}

func (h *Heartbeater) src() protocol.Address {
	return protocol.Address{Role: protocol.RoleStation, Station: h.stationID}
}

func (h *Heartbeater) sendRegister() {
	hostname, _ := os.Hostname()
	var displays []string
	for _, s := range h.statuses() {
		displays = append(displays, s.DisplayID)
	}
	env, err := protocol.NewEnvelope(protocol.TypeDisplayRegister, h.src(), protocol.Address{Role: protocol.RoleStore},
		&protocol.DisplayRegister{
			StationID: h.stationID,
			Hostname:  hostname,
			Version:   h.version,
			Displays:  displays,
		})
	if err != nil {
		log.Printf("heartbeater: build register: %v", err)
		return
	}
	if err := h.client.PublishEnvelope(h.topic, env); err != nil {
		log.Printf("heartbeater: send register: %v", err)
	} else {
		log.Printf("heartbeater: sent display.register (station=%s)", h.stationID)
	}
}

func (h *Heartbeater) sendHeartbeat() {
	env, err := protocol.NewEnvelope(protocol.TypeDisplayHeartbeat, h.src(), protocol.Address{Role: protocol.RoleStore},
		&protocol.DisplayHeartbeat{
			StationID: h.stationID,
			Uptime:    int64(time.Since(h.startTime).Seconds()),
			Displays:  h.statuses(),
		})
	if err != nil {
		log.Printf("heartbeater: build heartbeat: %v", err)
		return
	}
	if err := h.client.PublishEnvelope(h.topic, env); err != nil {
		log.Printf("heartbeater: send heartbeat: %v", err)
	}
}

func (h *Heartbeater) statuses() []protocol.DisplayStatus {
	if h.status == nil {
		return nil
	}
	return h.status()
}

func (h *Heartbeater) loop() {
	defer close(h.doneCh)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}
