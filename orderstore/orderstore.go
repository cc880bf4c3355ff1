// Package orderstore connects a display to the order store that owns order
// persistence: a pull API for open orders and a push channel for changes.
package orderstore

import (
	"context"
	"errors"

	"kitchenedge/orders"
)

// ErrNotFound is returned when the store has no order with the given id.
var ErrNotFound = errors.New("order not found")

// Store is the order store's pull and command surface.
type Store interface {
	ListOpenOrders(ctx context.Context) ([]*orders.Order, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	RequestStatusChange(ctx context.Context, id string, status orders.Status, extra orders.TransitionExtra) error
}

// EventKind is the kind of a pushed event.
type EventKind string

const (
	OrderCreated  EventKind = "created"
	StatusChanged EventKind = "status_changed"
	// Keepalive carries no order; it proves the channel is alive.
	Keepalive EventKind = "keepalive"
)

// Event is one pushed change.
type Event struct {
	Kind  EventKind
	Order *orders.Order
}

// PushHandler receives pushed events. It must not block.
type PushHandler func(Event)

// PushSource delivers pushed events until ctx is cancelled. Implementations
// reconnect on their own and return only when ctx is done or setup fails.
type PushSource interface {
	Subscribe(ctx context.Context, h PushHandler) error
}
