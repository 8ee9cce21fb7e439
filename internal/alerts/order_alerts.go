package alerts

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertOverdue           AlertType = "OVERDUE"
	AlertWait30            AlertType = "WAIT_30"
	AlertWait45            AlertType = "WAIT_45"
	AlertWait60            AlertType = "WAIT_60"
	AlertTimerHalfTime     AlertType = "TIMER_HALF_TIME"
	AlertTimerNearComplete AlertType = "TIMER_NEAR_COMPLETE"
	AlertTimerOverdue      AlertType = "TIMER_OVERDUE"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

var ErrAlertNotFound = errors.New("alert not found")

// OrderAlert is raised locally when an order or its timer crosses a threshold. It lives
// until acknowledged or cleared.
type OrderAlert struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"orderId"`
	OrderNumber    string     `json:"orderNumber,omitempty"`
	TimerID        string     `json:"timerId,omitempty"`
	Type           AlertType  `json:"type"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy *string    `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type Store struct {
	mu     sync.Mutex
	alerts []OrderAlert
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Add assigns an ID and creation time when missing and stores the alert.
func (s *Store) Add(a OrderAlert) OrderAlert {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.alerts = append(s.alerts, a)
	return a
}

// List returns alerts newest first. Acknowledged alerts are included only when all is true.
func (s *Store) List(all bool) []OrderAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderAlert, 0, len(s.alerts))
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if all || !s.alerts[i].Acknowledged {
			out = append(out, s.alerts[i])
		}
	}
	return out
}

func (s *Store) Unacknowledged() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if !a.Acknowledged {
			n++
		}
	}
	return n
}

func (s *Store) Acknowledge(alertID, staffID string) (OrderAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID != alertID {
			continue
		}
		if !s.alerts[i].Acknowledged {
			now := s.now()
			by := staffID
			s.alerts[i].Acknowledged = true
			s.alerts[i].AcknowledgedBy = &by
			s.alerts[i].AcknowledgedAt = &now
		}
		return s.alerts[i], nil
	}
	return OrderAlert{}, ErrAlertNotFound
}

// Clear removes every alert and returns how many were dropped.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.alerts)
	s.alerts = nil
	return n
}
