package orderstore

import (
	"context"
	"fmt"
	"sync"

	"kitchenedge/protocol"
)

// Subscriber is the messaging surface the push adapter needs.
type Subscriber interface {
	Subscribe(topic string, handler func(payload []byte)) error
}

// MessagingPush receives order events as protocol envelopes on a topic.
// The topic is subscribed once and fanned out locally.
type MessagingPush struct {
	client  Subscriber
	topic   string
	station string

	once     sync.Once
	startErr error
	notifier *Notifier
}

func NewMessagingPush(client Subscriber, topic, station string) *MessagingPush {
	return &MessagingPush{client: client, topic: topic, station: station, notifier: NewNotifier()}
}

func (p *MessagingPush) Subscribe(ctx context.Context, h PushHandler) error {
	p.once.Do(func() {
		ing := protocol.NewIngestor(&pushHandler{n: p.notifier}, func(hdr *protocol.RawHeader) bool {
			return hdr.ForStation(p.station)
		})
		if err := p.client.Subscribe(p.topic, ing.HandleRaw); err != nil {
			p.startErr = fmt.Errorf("subscribe %s: %w", p.topic, err)
		}
	})
	if p.startErr != nil {
		return p.startErr
	}
	return p.notifier.Subscribe(ctx, h)
}

type pushHandler struct {
	protocol.NoOpHandler
	n *Notifier
}

func (h *pushHandler) HandleOrderCreated(_ *protocol.Envelope, p *protocol.OrderEvent) {
	if p.Order != nil {
		h.n.Publish(Event{Kind: OrderCreated, Order: p.Order})
	}
}

func (h *pushHandler) HandleOrderStatusChanged(_ *protocol.Envelope, p *protocol.OrderEvent) {
	if p.Order != nil {
		h.n.Publish(Event{Kind: StatusChanged, Order: p.Order})
	}
}

func (h *pushHandler) HandleStoreKeepalive(*protocol.Envelope, *protocol.StoreKeepalive) {
	h.n.Publish(Event{Kind: Keepalive})
}
