package orders

import (
	"strings"
	"time"
)

type UrgencyLevel string

const (
	UrgencyLow       UrgencyLevel = "LOW"
	UrgencyNormal    UrgencyLevel = "NORMAL"
	UrgencyHigh      UrgencyLevel = "HIGH"
	UrgencyUrgent    UrgencyLevel = "URGENT"
	UrgencyEmergency UrgencyLevel = "EMERGENCY"
)

func ParseUrgency(value string) (UrgencyLevel, bool) {
	switch u := UrgencyLevel(strings.ToUpper(strings.TrimSpace(value))); u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent, UrgencyEmergency:
		return u, true
	default:
		return "", false
	}
}

// BadgeWaitMinutes is the wait after which the console shows an inline urgency badge.
const BadgeWaitMinutes = 20

// StaffOrder is the operational view of an order. It is rebuilt on every refresh and
// clock tick and never written back to the order record.
type StaffOrder struct {
	Order

	UrgencyLevel           UrgencyLevel `json:"urgencyLevel"`
	CanAssignToSelf        bool         `json:"canAssignToSelf"`
	CanStartCooking        bool         `json:"canStartCooking"`
	CanMarkReady           bool         `json:"canMarkReady"`
	CanComplete            bool         `json:"canComplete"`
	CanAccept              bool         `json:"canAccept"`
	CanReject              bool         `json:"canReject"`
	AvailableTransitions   []Status     `json:"availableTransitions"`
	ActualWaitTime         int          `json:"actualWaitTime"`
	EstimatedRemainingTime int          `json:"estimatedRemainingTime"`
	DelayedMinutes         int          `json:"delayedMinutes"`
	ShowUrgencyBadge       bool         `json:"showUrgencyBadge"`
}

// Project derives the staff view of an order at the given instant. It has no side effects.
func Project(order Order, now time.Time, staffID string) StaffOrder {
	view := StaffOrder{Order: order}

	view.CanAssignToSelf = order.AssignedStaff == nil && strings.TrimSpace(staffID) != ""
	view.CanStartCooking = order.Status == StatusConfirmed || order.Status == StatusProcessing
	view.CanMarkReady = order.Status == StatusPreparing
	view.CanComplete = order.Status == StatusReady || order.Status == StatusDelivered
	view.CanAccept = order.Status == StatusPending
	view.CanReject = order.Status == StatusPending
	view.AvailableTransitions = AvailableTransitions(order.Status)

	view.UrgencyLevel = urgencyFor(order)
	view.ActualWaitTime = wholeMinutes(now.Sub(order.OrderTime))
	if order.EstimatedCompleteTime != nil {
		view.EstimatedRemainingTime = wholeMinutes(order.EstimatedCompleteTime.Sub(now))
	}
	if order.IsOverdue {
		view.DelayedMinutes = order.OverdueMinutes
	}
	view.ShowUrgencyBadge = !order.Status.IsTerminal() && view.ActualWaitTime >= BadgeWaitMinutes
	return view
}

// ProjectAll projects a list, preserving its order.
func ProjectAll(list []Order, now time.Time, staffID string) []StaffOrder {
	out := make([]StaffOrder, 0, len(list))
	for _, o := range list {
		out = append(out, Project(o, now, staffID))
	}
	return out
}

// The server-supplied overdue flag dominates staff-set priority.
func urgencyFor(order Order) UrgencyLevel {
	switch {
	case order.IsOverdue:
		return UrgencyEmergency
	case order.Priority == PriorityUrgent:
		return UrgencyUrgent
	case order.Priority == PriorityHigh:
		return UrgencyHigh
	default:
		return UrgencyNormal
	}
}

func wholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
