package protocol

import "kitchenedge/orders"

// --- Order store -> displays ---

// OrderEvent carries the full order after a create or status change.
type OrderEvent struct {
	Order *orders.Order `json:"order"`
}

// StoreKeepalive proves the order store's publisher is alive.
type StoreKeepalive struct {
	Store string `json:"store"`
}

// --- Displays -> order store ---

// DisplayRegister is sent by a station on startup.
type DisplayRegister struct {
	StationID string   `json:"station_id"`
	Hostname  string   `json:"hostname"`
	Version   string   `json:"version"`
	Displays  []string `json:"displays"`
}

// DisplayStatus summarises one running display.
type DisplayStatus struct {
	DisplayID   string `json:"display_id"`
	Open        int    `json:"open"`
	Awaiting    int    `json:"awaiting"`
	AlarmActive bool   `json:"alarm_active"`
	Stale       bool   `json:"stale"`
}

// DisplayHeartbeat is sent periodically by a station.
type DisplayHeartbeat struct {
	StationID string          `json:"station_id"`
	Uptime    int64           `json:"uptime_s"`
	Displays  []DisplayStatus `json:"displays"`
}
