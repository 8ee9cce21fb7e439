package queueview

import (
	"sort"
	"strconv"
	"strings"

	"genfity-staff-queue/internal/orders"
)

type SortField string

const (
	SortByOrderTime   SortField = "orderTime"
	SortByPriority    SortField = "priority"
	SortByStatus      SortField = "status"
	SortByTableNumber SortField = "tableNumber"
	SortByTotalAmount SortField = "totalAmount"
)

func ParseSortField(value string) (SortField, bool) {
	for _, f := range []SortField{SortByOrderTime, SortByPriority, SortByStatus, SortByTableNumber, SortByTotalAmount} {
		if strings.EqualFold(string(f), strings.TrimSpace(value)) {
			return f, true
		}
	}
	return "", false
}

type Sort struct {
	Field      SortField `json:"field"`
	Descending bool      `json:"descending"`
}

// Apply orders list in place by one field. Equal keys keep their input order in both
// directions; an empty field leaves the list untouched.
func (s Sort) Apply(list []orders.StaffOrder) {
	less := lessFor(s.Field)
	if less == nil {
		return
	}
	if s.Descending {
		sort.SliceStable(list, func(i, j int) bool { return less(list[j], list[i]) })
		return
	}
	sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
}

func lessFor(field SortField) func(a, b orders.StaffOrder) bool {
	switch field {
	case SortByOrderTime:
		return func(a, b orders.StaffOrder) bool { return a.OrderTime.Before(b.OrderTime) }
	case SortByPriority:
		return func(a, b orders.StaffOrder) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case SortByStatus:
		return func(a, b orders.StaffOrder) bool { return a.Status < b.Status }
	case SortByTableNumber:
		return func(a, b orders.StaffOrder) bool { return tableNumber(a) < tableNumber(b) }
	case SortByTotalAmount:
		return func(a, b orders.StaffOrder) bool { return a.TotalAmount < b.TotalAmount }
	default:
		return nil
	}
}

// Non-numeric table labels sort as table 0.
func tableNumber(o orders.StaffOrder) int {
	n, err := strconv.Atoi(o.TableLabel())
	if err != nil {
		return 0
	}
	return n
}

// Build filters then sorts. The input slice is not modified.
func Build(list []orders.StaffOrder, staffID string, f Filter, s Sort) []orders.StaffOrder {
	out := f.Apply(list, staffID)
	s.Apply(out)
	return out
}
