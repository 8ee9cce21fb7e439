package alerts

import "sync"

// FiredSet records which (subject, threshold) pairs have already produced an alert.
// Subjects are order or timer IDs.
type FiredSet struct {
	mu    sync.Mutex
	fired map[string]map[string]struct{}
}

func NewFiredSet() *FiredSet {
	return &FiredSet{fired: make(map[string]map[string]struct{})}
}

// Fire latches the pair and reports true only the first time it is seen.
func (s *FiredSet) Fire(subject, threshold string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.fired[subject]
	if !ok {
		set = make(map[string]struct{})
		s.fired[subject] = set
	}
	if _, done := set[threshold]; done {
		return false
	}
	set[threshold] = struct{}{}
	return true
}

func (s *FiredSet) Has(subject, threshold string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fired[subject][threshold]
	return ok
}

// Retain drops latches of subjects for which keep returns false.
func (s *FiredSet) Retain(keep func(subject string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for subject := range s.fired {
		if !keep(subject) {
			delete(s.fired, subject)
		}
	}
}

func (s *FiredSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, set := range s.fired {
		n += len(set)
	}
	return n
}
