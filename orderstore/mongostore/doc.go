package mongostore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"

	"kitchenedge/orders"
)

// Money is stored as decimal strings so totals survive the round trip exactly.
type orderDoc struct {
	ID                  string     `bson:"_id"`
	ExternalID          string     `bson:"external_id,omitempty"`
	Channel             string     `bson:"channel"`
	Status              string     `bson:"status"`
	CustomerName        string     `bson:"customer_name,omitempty"`
	CustomerPhone       string     `bson:"customer_phone,omitempty"`
	OrderType           string     `bson:"order_type,omitempty"`
	PickupTime          *time.Time `bson:"pickup_time,omitempty"`
	SpecialInstructions string     `bson:"special_instructions,omitempty"`
	Items               []itemDoc  `bson:"items"`
	Subtotal            string     `bson:"subtotal"`
	TotalAmount         string     `bson:"total_amount"`
	PrepMinutes         int        `bson:"prep_minutes,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

type itemDoc struct {
	Name      string   `bson:"name"`
	Quantity  int      `bson:"quantity"`
	UnitPrice string   `bson:"unit_price"`
	Modifiers []string `bson:"modifiers,omitempty"`
}

func fromOrder(o *orders.Order) orderDoc {
	doc := orderDoc{
		ID:                  o.ID,
		ExternalID:          o.ExternalID,
		Channel:             o.Channel,
		Status:              string(o.Status),
		CustomerName:        o.CustomerName,
		CustomerPhone:       o.CustomerPhone,
		OrderType:           o.OrderType,
		PickupTime:          o.PickupTime,
		SpecialInstructions: o.SpecialInstructions,
		Subtotal:            o.Subtotal.String(),
		TotalAmount:         o.TotalAmount.String(),
		CreatedAt:           o.CreatedAt.UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	for _, li := range o.Items {
		doc.Items = append(doc.Items, itemDoc{
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice.String(),
			Modifiers: li.Modifiers,
		})
	}
	return doc
}

func (d orderDoc) toOrder() (*orders.Order, error) {
	subtotal, err := parseMoney(d.Subtotal)
	if err != nil {
		return nil, fmt.Errorf("order %s subtotal: %w", d.ID, err)
	}
	total, err := parseMoney(d.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("order %s total: %w", d.ID, err)
	}
	o := &orders.Order{
		ID:                  d.ID,
		ExternalID:          d.ExternalID,
		Channel:             d.Channel,
		Status:              orders.Status(d.Status),
		CustomerName:        d.CustomerName,
		CustomerPhone:       d.CustomerPhone,
		OrderType:           d.OrderType,
		PickupTime:          d.PickupTime,
		SpecialInstructions: d.SpecialInstructions,
		Items:               make([]orders.LineItem, 0, len(d.Items)),
		Subtotal:            subtotal,
		TotalAmount:         total,
		CreatedAt:           d.CreatedAt,
	}
	for _, it := range d.Items {
		price, err := parseMoney(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("order %s item %q price: %w", d.ID, it.Name, err)
		}
		o.Items = append(o.Items, orders.LineItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: price,
			Modifiers: it.Modifiers,
		})
	}
	return o, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// statusUpdate builds the $set document for a status change, rejecting
// edges outside the lifecycle table. A prep offset also sets the pickup time.
func statusUpdate(id string, from, to orders.Status, extra orders.TransitionExtra, now time.Time) (bson.M, error) {
	if from != to && !orders.IsValidTransition(from, to) {
		return nil, &orders.IllegalTransitionError{OrderID: id, From: from, To: to}
	}
	set := bson.M{"status": string(to), "updated_at": now}
	if extra.PrepMinutes > 0 {
		set["prep_minutes"] = extra.PrepMinutes
		set["pickup_time"] = *extra.PickupTime(now)
	}
	return set, nil
}
