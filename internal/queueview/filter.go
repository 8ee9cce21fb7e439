package queueview

import (
	"strings"

	"genfity-staff-queue/internal/orders"
)

// Filter selects the working set shown to staff. Zero-valued fields are pass-through;
// active fields are combined with AND.
type Filter struct {
	Search              string                `json:"search,omitempty"`
	Statuses            []orders.Status       `json:"statuses,omitempty"`
	Priorities          []orders.Priority     `json:"priorities,omitempty"`
	Urgencies           []orders.UrgencyLevel `json:"urgencies,omitempty"`
	Sources             []string              `json:"sources,omitempty"`
	AssignedToMe        bool                  `json:"assignedToMe,omitempty"`
	OverdueOnly         bool                  `json:"overdueOnly,omitempty"`
	DelayedOnly         bool                  `json:"delayedOnly,omitempty"`
	SpecialRequestsOnly bool                  `json:"specialRequestsOnly,omitempty"`
	AllergyWarningsOnly bool                  `json:"allergyWarningsOnly,omitempty"`
	TableNumber         string                `json:"tableNumber,omitempty"`
	MinAmount           *float64              `json:"minAmount,omitempty"`
	MaxAmount           *float64              `json:"maxAmount,omitempty"`
	MinWaitMinutes      *int                  `json:"minWaitMinutes,omitempty"`
	MaxWaitMinutes      *int                  `json:"maxWaitMinutes,omitempty"`
}

type predicate func(orders.StaffOrder) bool

// stages returns the active predicates in pipeline order.
func (f Filter) stages(staffID string) []predicate {
	var out []predicate

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		out = append(out, func(o orders.StaffOrder) bool {
			return strings.Contains(strings.ToLower(o.OrderNumber), q) ||
				strings.Contains(strings.ToLower(o.TableLabel()), q) ||
				strings.Contains(strings.ToLower(o.CustomerName), q)
		})
	}
	if len(f.Statuses) > 0 {
		out = append(out, func(o orders.StaffOrder) bool { return contains(f.Statuses, o.Status) })
	}
	if len(f.Priorities) > 0 {
		out = append(out, func(o orders.StaffOrder) bool { return contains(f.Priorities, o.Priority) })
	}
	if len(f.Urgencies) > 0 {
		out = append(out, func(o orders.StaffOrder) bool { return contains(f.Urgencies, o.UrgencyLevel) })
	}
	if len(f.Sources) > 0 {
		out = append(out, func(o orders.StaffOrder) bool {
			for _, s := range f.Sources {
				if strings.EqualFold(s, o.Source) {
					return true
				}
			}
			return false
		})
	}
	if f.AssignedToMe {
		out = append(out, func(o orders.StaffOrder) bool {
			return staffID != "" && o.AssignedStaff != nil && *o.AssignedStaff == staffID
		})
	}
	if f.OverdueOnly {
		out = append(out, func(o orders.StaffOrder) bool { return o.IsOverdue })
	}
	if f.DelayedOnly {
		out = append(out, func(o orders.StaffOrder) bool { return o.DelayedMinutes > 0 })
	}
	if f.SpecialRequestsOnly {
		out = append(out, func(o orders.StaffOrder) bool { return o.HasSpecialRequests() })
	}
	if f.AllergyWarningsOnly {
		out = append(out, func(o orders.StaffOrder) bool { return o.HasAllergyWarnings() })
	}
	if table := strings.TrimSpace(f.TableNumber); table != "" {
		out = append(out, func(o orders.StaffOrder) bool { return strings.EqualFold(o.TableLabel(), table) })
	}
	if f.MinAmount != nil || f.MaxAmount != nil {
		out = append(out, func(o orders.StaffOrder) bool {
			if f.MinAmount != nil && o.TotalAmount < *f.MinAmount {
				return false
			}
			return f.MaxAmount == nil || o.TotalAmount <= *f.MaxAmount
		})
	}
	if f.MinWaitMinutes != nil || f.MaxWaitMinutes != nil {
		out = append(out, func(o orders.StaffOrder) bool {
			if f.MinWaitMinutes != nil && o.ActualWaitTime < *f.MinWaitMinutes {
				return false
			}
			return f.MaxWaitMinutes == nil || o.ActualWaitTime <= *f.MaxWaitMinutes
		})
	}
	return out
}

// Apply keeps the orders that pass every active stage, preserving input order.
func (f Filter) Apply(list []orders.StaffOrder, staffID string) []orders.StaffOrder {
	return applyStages(list, f.stages(staffID))
}

func applyStages(list []orders.StaffOrder, stages []predicate) []orders.StaffOrder {
	out := make([]orders.StaffOrder, 0, len(list))
next:
	for _, o := range list {
		for _, keep := range stages {
			if !keep(o) {
				continue next
			}
		}
		out = append(out, o)
	}
	return out
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
