// Package receipt renders orders into receipt documents and encodes them for
// the print transports. Everything here is pure: identical inputs always
// produce byte-identical output, which is what lets the dispatcher detect
// duplicate print actions.
package receipt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kitchenedge/orders"

	"github.com/shopspring/decimal"
)

// Paper widths in millimetres and their character columns.
const (
	Paper58mm = 58
	Paper80mm = 80

	Columns58mm = 32
	Columns80mm = 48
)

// Options controls rendering.
type Options struct {
	PaperWidth int
	HeaderText string
	FooterText string
	FontScale  float64
	// PrintedAt overrides the timestamp line. Zero uses the order's creation
	// time so that reprints of an unchanged order stay identical.
	PrintedAt time.Time
}

// Row is a labelled order detail line.
type Row struct {
	Label string
	Value string
}

// Item is a rendered line item.
type Item struct {
	Quantity  int
	Name      string
	Total     string
	Modifiers []string
}

// Document is a rendered receipt, independent of transport.
type Document struct {
	OrderID      string
	PaperWidth   int
	Columns      int
	FontScale    float64
	Header       []string
	OrderNumber  string
	Rows         []Row
	Items        []Item
	Subtotal     string
	Tax          string
	Total        string
	Instructions string
	Timestamp    string
	Footer       []string
}

// ErrInvalidOrder is returned when an order cannot be rendered.
var ErrInvalidOrder = errors.New("invalid order")

// ColumnsFor maps a paper width to its character columns. Anything narrower
// than 80mm is treated as 58mm.
func ColumnsFor(paperWidth int) int {
	if paperWidth > 0 && paperWidth < Paper80mm {
		return Columns58mm
	}
	return Columns80mm
}

// Render builds the receipt document for order.
func Render(order *orders.Order, profile orders.RestaurantProfile, opts Options) (*Document, error) {
	if order == nil {
		return nil, fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidOrder)
	}
	for i, li := range order.Items {
		if li.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %d %q has quantity %d", ErrInvalidOrder, i, li.Name, li.Quantity)
		}
		if li.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item %d %q has negative price", ErrInvalidOrder, i, li.Name)
		}
	}

	paper := opts.PaperWidth
	if paper <= 0 {
		paper = Paper80mm
	}
	scale := opts.FontScale
	if scale <= 0 {
		scale = 1
	}

	doc := &Document{
		OrderID:     order.ID,
		PaperWidth:  paper,
		Columns:     ColumnsFor(paper),
		FontScale:   clampScale(scale),
		OrderNumber: order.DisplayNumber(),
	}

	for _, s := range []string{profile.Name, profile.Address, profile.Phone} {
		if s = strings.TrimSpace(s); s != "" {
			doc.Header = append(doc.Header, s)
		}
	}
	doc.Header = append(doc.Header, splitLines(opts.HeaderText)...)
	doc.Footer = splitLines(opts.FooterText)

	if order.CustomerName != "" {
		doc.Rows = append(doc.Rows, Row{"Customer", order.CustomerName})
	}
	if order.CustomerPhone != "" {
		doc.Rows = append(doc.Rows, Row{"Phone", order.CustomerPhone})
	}
	if order.Channel != "" {
		doc.Rows = append(doc.Rows, Row{"Channel", strings.ToUpper(order.Channel)})
	}
	if order.OrderType != "" {
		doc.Rows = append(doc.Rows, Row{"Type", strings.ToUpper(order.OrderType)})
	}
	if order.PickupTime != nil {
		doc.Rows = append(doc.Rows, Row{"Pickup", order.PickupTime.Format("15:04")})
	}

	for _, li := range order.Items {
		it := Item{
			Quantity: li.Quantity,
			Name:     strings.TrimSpace(li.Name),
			Total:    Money(li.LineTotal()),
		}
		for _, m := range li.Modifiers {
			if m = strings.TrimSpace(m); m != "" {
				it.Modifiers = append(it.Modifiers, m)
			}
		}
		doc.Items = append(doc.Items, it)
	}

	subtotal := order.DisplaySubtotal()
	total := order.DisplayTotal()
	doc.Subtotal = Money(subtotal)
	doc.Tax = Money(Tax(subtotal, total))
	doc.Total = Money(total)
	doc.Instructions = strings.TrimSpace(order.SpecialInstructions)

	ts := opts.PrintedAt
	if ts.IsZero() {
		ts = order.CreatedAt
	}
	if !ts.IsZero() {
		doc.Timestamp = ts.Format("2006-01-02 15:04")
	}
	return doc, nil
}

// Tax is total minus subtotal, never negative.
func Tax(subtotal, total decimal.Decimal) decimal.Decimal {
	tax := total.Sub(subtotal)
	if tax.IsNegative() {
		return decimal.Zero
	}
	return tax
}

// Money formats an amount with exactly two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func clampScale(s float64) float64 {
	switch {
	case s < 0.5:
		return 0.5
	case s > 3:
		return 3
	}
	return s
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
