package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusPreparing, StatusCancelled},
	StatusPreparing:  {StatusReady, StatusProcessing},
	StatusReady:      {StatusDelivered, StatusCompleted},
	StatusDelivered:  {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrOrderTerminal     = errors.New("order is in a terminal status")
	ErrStaffRequired     = errors.New("staff identity required")
)

// TransitionError describes a rejected transition. It matches ErrIllegalTransition.
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
	Reason  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s: %s", e.OrderID, e.From, e.To, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// AvailableTransitions returns a copy of the legal targets for the given status.
func AvailableTransitions(current Status) []Status {
	allowed := allowedTransitions[current]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

func CanTransition(current, next Status) bool {
	if current == next {
		return false
	}
	for _, s := range allowedTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// StatusWriter is the part of the remote order API the state machine writes through.
type StatusWriter interface {
	UpdateOrderStatus(ctx context.Context, orderID string, status Status, staffID string, note *string) (Order, error)
	AssignOrder(ctx context.Context, orderID string, staffID string) error
	CancelOrder(ctx context.Context, orderID string, reason string) error
}

// Machine is the only path by which an order's lifecycle status changes.
type Machine struct {
	writer StatusWriter
}

func NewMachine(writer StatusWriter) *Machine {
	return &Machine{writer: writer}
}

// Transition validates the move locally and only then calls the remote API.
// The returned order is the remote system's view after the update.
func (m *Machine) Transition(ctx context.Context, order Order, target Status, staffID string, note *string) (Order, error) {
	if err := checkTransition(order, target); err != nil {
		return order, err
	}
	if note != nil {
		trimmed := strings.TrimSpace(*note)
		if trimmed == "" {
			note = nil
		} else {
			note = &trimmed
		}
	}

	updated, err := m.writer.UpdateOrderStatus(ctx, order.ID, target, staffID, note)
	if err != nil {
		return order, fmt.Errorf("update order %s status: %w", order.ID, err)
	}
	return updated, nil
}

// Assign hands the order to a staff member. It never changes the status.
func (m *Machine) Assign(ctx context.Context, order Order, staffID string) error {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return ErrStaffRequired
	}
	if order.Status.IsTerminal() {
		return fmt.Errorf("assign order %s: %w", order.ID, ErrOrderTerminal)
	}
	if err := m.writer.AssignOrder(ctx, order.ID, staffID); err != nil {
		return fmt.Errorf("assign order %s: %w", order.ID, err)
	}
	return nil
}

// Cancel moves the order to CANCELLED through the dedicated cancel endpoint.
func (m *Machine) Cancel(ctx context.Context, order Order, reason string) error {
	if err := checkTransition(order, StatusCancelled); err != nil {
		return err
	}
	if err := m.writer.CancelOrder(ctx, order.ID, strings.TrimSpace(reason)); err != nil {
		return fmt.Errorf("cancel order %s: %w", order.ID, err)
	}
	return nil
}

func checkTransition(order Order, target Status) error {
	if _, ok := allowedTransitions[order.Status]; !ok {
		return &TransitionError{OrderID: order.ID, From: order.Status, To: target, Reason: "unknown current status"}
	}
	if order.Status.IsTerminal() {
		return &TransitionError{OrderID: order.ID, From: order.Status, To: target, Reason: "status is terminal"}
	}
	if target == StatusRefunded {
		return &TransitionError{OrderID: order.ID, From: order.Status, To: target, Reason: "refunds go through payments"}
	}
	if !CanTransition(order.Status, target) {
		return &TransitionError{OrderID: order.ID, From: order.Status, To: target, Reason: "not an allowed next status"}
	}
	return nil
}
