package bulk

import (
	"sort"
	"sync"

	"genfity-staff-queue/internal/orders"
)

// Selection is the set of orders a staff member has ticked for a bulk action.
type Selection struct {
	mu  sync.Mutex
	ids map[string]struct{}
	all bool
}

type SelectionState struct {
	OrderIDs    []string `json:"orderIds"`
	AllSelected bool     `json:"allSelected"`
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Toggle flips one order and reports whether it is now selected.
func (s *Selection) Toggle(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = false
	if _, ok := s.ids[orderID]; ok {
		delete(s.ids, orderID)
		return false
	}
	s.ids[orderID] = struct{}{}
	return true
}

// Set replaces the selection with exactly these orders.
func (s *Selection) Set(orderIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = false
	s.ids = make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
}

// SelectAll selects every order of the current working set.
func (s *Selection) SelectAll(orderIDs []string) {
	s.Set(orderIDs)
	s.mu.Lock()
	s.all = true
	s.mu.Unlock()
}

func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = false
	s.ids = make(map[string]struct{})
}

func (s *Selection) Contains(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[orderID]
	return ok
}

func (s *Selection) State() SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return SelectionState{OrderIDs: ids, AllSelected: s.all}
}

// Resolve returns the selected orders present in list, in list order. Orders that left
// the queue since they were selected are dropped.
func (s *Selection) Resolve(list []orders.StaffOrder) []orders.StaffOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.StaffOrder, 0, len(s.ids))
	for _, o := range list {
		if _, ok := s.ids[o.ID]; ok {
			out = append(out, o)
		}
	}
	return out
}
