// Package autoprint decides when an order is printed without an explicit
// operator print request.
package autoprint

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"kitchenedge/orders"
	"kitchenedge/printing"
)

var (
	ErrPromptNotFound = errors.New("print prompt not found")
	ErrPromptResolved = errors.New("print prompt already resolved")
)

// PromptState tracks a print prompt. Withdrawn prompts can still be
// accepted once.
type PromptState string

const (
	PromptOpen      PromptState = "open"
	PromptWithdrawn PromptState = "withdrawn"
	PromptResolved  PromptState = "resolved"
)

// Prompt asks the operator whether to print an order.
type Prompt struct {
	ID       string      `json:"id"`
	OrderID  string      `json:"order_id"`
	State    PromptState `json:"state"`
	RaisedAt time.Time   `json:"raised_at"`
}

// Printer starts a print. It must not block; the outcome comes back through
// PrintFinished.
type Printer interface {
	RequestPrint(orderID string, mode printing.Mode, markAsPrinted bool)
}

// Listener is told about prompt changes.
type Listener interface {
	PromptRaised(p Prompt)
	PromptWithdrawn(p Prompt)
}

// Settings are read once at session start.
type Settings struct {
	Enabled bool
	Mode    printing.Mode
}

// Coordinator is driven from the session loop and is not safe for
// concurrent use.
type Coordinator struct {
	settings Settings
	printer  Printer
	listener Listener
	printed  func(orderID string) bool

	prompts   map[string]*Prompt
	byOrder   map[string]string
	requested map[string]bool

	now func() time.Time
}

// New creates a coordinator. printed reports membership of the session's
// printed set.
func New(settings Settings, printer Printer, listener Listener, printed func(string) bool) *Coordinator {
	return &Coordinator{
		settings:  settings,
		printer:   printer,
		listener:  listener,
		printed:   printed,
		prompts:   make(map[string]*Prompt),
		byOrder:   make(map[string]string),
		requested: make(map[string]bool),
		now:       time.Now,
	}
}

// OnOrderArrived handles the first sighting of an order. Orders first seen
// past received are never candidates.
func (c *Coordinator) OnOrderArrived(o *orders.Order) {
	if o == nil || o.Status != orders.StatusReceived {
		return
	}
	c.consider(o.ID)
}

// OnStatusChanged withdraws any open prompt for the order. The withdrawn
// prompt stays reachable by id but no longer blocks a fresh one.
func (c *Coordinator) OnStatusChanged(orderID string) {
	pid, ok := c.byOrder[orderID]
	if !ok {
		return
	}
	p := c.prompts[pid]
	if p.State != PromptOpen {
		return
	}
	p.State = PromptWithdrawn
	delete(c.byOrder, orderID)
	if c.listener != nil {
		c.listener.PromptWithdrawn(*p)
	}
}

// OnAccepted handles the operator moving an order to preparing.
func (c *Coordinator) OnAccepted(orderID string) {
	c.consider(orderID)
}

// PrintFinished clears the pending auto-print so a failed one can be
// attempted again on acceptance.
func (c *Coordinator) PrintFinished(orderID string, success bool) {
	if !success {
		delete(c.requested, orderID)
	}
}

func (c *Coordinator) consider(orderID string) {
	if c.isPrinted(orderID) || c.requested[orderID] {
		return
	}
	if c.settings.Enabled {
		c.requested[orderID] = true
		c.printer.RequestPrint(orderID, c.settings.Mode, true)
		return
	}
	if _, ok := c.byOrder[orderID]; ok {
		return
	}
	p := &Prompt{ID: uuid.New().String(), OrderID: orderID, State: PromptOpen, RaisedAt: c.now()}
	c.prompts[p.ID] = p
	c.byOrder[orderID] = p.ID
	if c.listener != nil {
		c.listener.PromptRaised(*p)
	}
}

func (c *Coordinator) isPrinted(orderID string) bool {
	return c.printed != nil && c.printed(orderID)
}

// AcceptPrompt resolves a prompt and prints its order unless it has been
// printed meanwhile.
func (c *Coordinator) AcceptPrompt(promptID string) (Prompt, error) {
	p, err := c.resolve(promptID)
	if err != nil {
		return Prompt{}, err
	}
	if !c.isPrinted(p.OrderID) && !c.requested[p.OrderID] {
		c.requested[p.OrderID] = true
		c.printer.RequestPrint(p.OrderID, c.settings.Mode, true)
	}
	return *p, nil
}

// DismissPrompt resolves a prompt without printing.
func (c *Coordinator) DismissPrompt(promptID string) (Prompt, error) {
	p, err := c.resolve(promptID)
	if err != nil {
		return Prompt{}, err
	}
	return *p, nil
}

func (c *Coordinator) resolve(promptID string) (*Prompt, error) {
	p, ok := c.prompts[promptID]
	if !ok {
		return nil, ErrPromptNotFound
	}
	if p.State == PromptResolved {
		return nil, ErrPromptResolved
	}
	p.State = PromptResolved
	if c.byOrder[p.OrderID] == p.ID {
		delete(c.byOrder, p.OrderID)
	}
	return p, nil
}

// Prompts lists open prompts in no particular order.
func (c *Coordinator) Prompts() []Prompt {
	out := make([]Prompt, 0, len(c.byOrder))
	for _, pid := range c.byOrder {
		out = append(out, *c.prompts[pid])
	}
	return out
}

// Settings returns the settings the coordinator was started with.
func (c *Coordinator) Settings() Settings { return c.settings }
