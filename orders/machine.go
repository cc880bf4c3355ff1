package orders

import (
	"errors"
	"fmt"
	"time"
)

// ErrIllegalTransition matches every *IllegalTransitionError.
var ErrIllegalTransition = errors.New("illegal transition")

// IllegalTransitionError reports a requested edge that is not in the table.
type IllegalTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal transition from %s to %s", e.OrderID, e.From, e.To)
}

// Is makes errors.Is(err, ErrIllegalTransition) true.
func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// validTransitions defines which status transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusReceived:  {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted},
}

// IsValidTransition checks if a status transition is allowed.
func IsValidTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is a terminal state.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// IsKnown reports whether s is one of the five order statuses.
func IsKnown(s Status) bool {
	switch s {
	case StatusReceived, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus validates a wire status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !IsKnown(st) {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// CanProgress reports whether to is reachable from from by zero or more legal
// transitions. Used to discard stale status deliveries.
func CanProgress(from, to Status) bool {
	if from == to {
		return true
	}
	seen := map[Status]bool{from: true}
	queue := []Status{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range validTransitions[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// RequestTransition validates moving order to target and returns the new status.
// It never touches storage; committing is the caller's job.
func RequestTransition(order *Order, target Status) (Status, error) {
	if order == nil {
		return "", fmt.Errorf("request transition: nil order")
	}
	if !IsValidTransition(order.Status, target) {
		return "", &IllegalTransitionError{OrderID: order.ID, From: order.Status, To: target}
	}
	return target, nil
}

// Prep-time bounds for the accept action.
const (
	MinPrepMinutes = 1
	MaxPrepMinutes = 240
)

// TransitionExtra is optional data carried alongside a transition. Only
// meaningful for received -> preparing.
type TransitionExtra struct {
	PrepMinutes int `json:"prep_minutes,omitempty"`
}

// Validate checks the prep-minutes offset against target.
func (x *TransitionExtra) Validate(target Status) error {
	if x == nil || x.PrepMinutes == 0 {
		return nil
	}
	if target != StatusPreparing {
		return fmt.Errorf("prep minutes only apply to %s, not %s", StatusPreparing, target)
	}
	if x.PrepMinutes < MinPrepMinutes || x.PrepMinutes > MaxPrepMinutes {
		return fmt.Errorf("prep minutes %d out of range %d-%d", x.PrepMinutes, MinPrepMinutes, MaxPrepMinutes)
	}
	return nil
}

// PickupTime returns now + the prep offset, or nil when no offset was chosen.
func (x *TransitionExtra) PickupTime(now time.Time) *time.Time {
	if x == nil || x.PrepMinutes == 0 {
		return nil
	}
	t := now.Add(time.Duration(x.PrepMinutes) * time.Minute)
	return &t
}
