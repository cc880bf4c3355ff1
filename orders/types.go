package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

// Order statuses
const (
	StatusReceived  Status = "received"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Order channels
const (
	ChannelPOS   = "pos"
	ChannelWeb   = "web"
	ChannelVoice = "voice"
	ChannelPhone = "phone"
)

// Order types
const (
	TypePickup   = "pickup"
	TypeDelivery = "delivery"
	TypeDineIn   = "dine-in"
)

// LineItem is one ordered product.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Modifiers []string        `json:"modifiers,omitempty"`
}

// LineTotal returns quantity times unit price.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is the engine's view of an order record owned by the external order store.
type Order struct {
	ID                  string          `json:"id"`
	ExternalID          string          `json:"external_id,omitempty"`
	Channel             string          `json:"channel"`
	Status              Status          `json:"status"`
	CustomerName        string          `json:"customer_name,omitempty"`
	CustomerPhone       string          `json:"customer_phone,omitempty"`
	OrderType           string          `json:"order_type,omitempty"`
	PickupTime          *time.Time      `json:"pickup_time,omitempty"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Items               []LineItem      `json:"items"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	CreatedAt           time.Time       `json:"created_at"`
}

// DisplayNumber is the human-facing order number: the external short code when
// present, otherwise the server id.
func (o *Order) DisplayNumber() string {
	if o.ExternalID != "" {
		return o.ExternalID
	}
	return o.ID
}

// ItemsTotal sums the line totals.
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range o.Items {
		sum = sum.Add(li.LineTotal())
	}
	return sum
}

// DisplaySubtotal returns the store's subtotal, falling back to the item sum
// only when the store sent none.
func (o *Order) DisplaySubtotal() decimal.Decimal {
	if o.Subtotal.IsZero() {
		return o.ItemsTotal()
	}
	return o.Subtotal
}

// DisplayTotal returns the store's total, falling back to the subtotal when the
// store sent none.
func (o *Order) DisplayTotal() decimal.Decimal {
	if o.TotalAmount.IsZero() {
		return o.DisplaySubtotal()
	}
	return o.TotalAmount
}

// Equal reports whether two order records carry identical data.
func (o *Order) Equal(other *Order) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o.ID != other.ID || o.ExternalID != other.ExternalID || o.Channel != other.Channel ||
		o.Status != other.Status || o.CustomerName != other.CustomerName ||
		o.CustomerPhone != other.CustomerPhone || o.OrderType != other.OrderType ||
		o.SpecialInstructions != other.SpecialInstructions ||
		!o.Subtotal.Equal(other.Subtotal) || !o.TotalAmount.Equal(other.TotalAmount) ||
		!o.CreatedAt.Equal(other.CreatedAt) {
		return false
	}
	if (o.PickupTime == nil) != (other.PickupTime == nil) {
		return false
	}
	if o.PickupTime != nil && !o.PickupTime.Equal(*other.PickupTime) {
		return false
	}
	if len(o.Items) != len(other.Items) {
		return false
	}
	for i := range o.Items {
		a, b := o.Items[i], other.Items[i]
		if a.Name != b.Name || a.Quantity != b.Quantity || !a.UnitPrice.Equal(b.UnitPrice) ||
			len(a.Modifiers) != len(b.Modifiers) {
			return false
		}
		for j := range a.Modifiers {
			if a.Modifiers[j] != b.Modifiers[j] {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	if o.PickupTime != nil {
		t := *o.PickupTime
		cp.PickupTime = &t
	}
	cp.Items = make([]LineItem, len(o.Items))
	for i, li := range o.Items {
		cp.Items[i] = li
		if li.Modifiers != nil {
			cp.Items[i].Modifiers = append([]string(nil), li.Modifiers...)
		}
	}
	return &cp
}

// RestaurantProfile is the display-only identity printed on receipts.
type RestaurantProfile struct {
	Name    string `json:"name" yaml:"name"`
	Phone   string `json:"phone" yaml:"phone"`
	Address string `json:"address" yaml:"address"`
	LogoRef string `json:"logo_ref,omitempty" yaml:"logo_ref"`
}
