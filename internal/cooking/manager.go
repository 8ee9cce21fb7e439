package cooking

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"genfity-staff-queue/internal/orders"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTimerNotFound      = errors.New("cooking timer not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrCannotStartCooking = errors.New("order cannot start cooking")
	ErrInvalidTimerState  = errors.New("invalid timer state")
	ErrInvalidEstimate    = errors.New("estimated minutes must be positive")
)

// OrderSource resolves the current snapshot copy of an order.
type OrderSource interface {
	Order(orderID string) (orders.Order, bool)
}

// ThresholdEvent is emitted once per timer and threshold when Tick sees the crossing.
type ThresholdEvent struct {
	TimerID   string        `json:"timerId"`
	OrderID   string        `json:"orderId"`
	Threshold Threshold     `json:"threshold"`
	Elapsed   time.Duration `json:"-"`
	At        time.Time     `json:"at"`
}

type Manager struct {
	source OrderSource
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu     sync.Mutex
	timers map[string]*Timer
	order  []string
}

func NewManager(source OrderSource, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		source: source,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		timers: make(map[string]*Timer),
	}
}

func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

func (m *Manager) Now() time.Time { return m.now() }

// Start creates a RUNNING timer for an order whose projection allows cooking. A second
// timer for the same order is allowed; Active reports the newest open one.
func (m *Manager) Start(orderID string, estimatedMinutes int) (Timer, error) {
	if estimatedMinutes <= 0 {
		return Timer{}, ErrInvalidEstimate
	}
	order, ok := m.source.Order(orderID)
	if !ok {
		return Timer{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	now := m.now()
	if !orders.Project(order, now, "").CanStartCooking {
		return Timer{}, fmt.Errorf("%w: order %s is %s", ErrCannotStartCooking, orderID, order.Status)
	}

	t := &Timer{
		ID:                m.newID(),
		OrderID:           orderID,
		StartTime:         now,
		Status:            TimerRunning,
		EstimatedDuration: time.Duration(estimatedMinutes) * time.Minute,
	}

	m.mu.Lock()
	m.timers[t.ID] = t
	m.order = append(m.order, t.ID)
	m.mu.Unlock()

	m.logger.Info("cooking timer started",
		zap.String("timer_id", t.ID),
		zap.String("order_id", orderID),
		zap.Int("estimated_minutes", estimatedMinutes),
	)
	return *t, nil
}

func (m *Manager) Pause(timerID string) (Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[timerID]
	if !ok {
		return Timer{}, ErrTimerNotFound
	}
	if t.Status != TimerRunning {
		return Timer{}, fmt.Errorf("%w: cannot pause %s timer", ErrInvalidTimerState, t.Status)
	}
	now := m.now()
	t.PausedTime = &now
	t.Status = TimerPaused
	return *t, nil
}

func (m *Manager) Resume(timerID string) (Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[timerID]
	if !ok {
		return Timer{}, ErrTimerNotFound
	}
	if t.Status != TimerPaused {
		return Timer{}, fmt.Errorf("%w: cannot resume %s timer", ErrInvalidTimerState, t.Status)
	}
	now := m.now()
	closePause(t, now)
	t.ResumeTime = &now
	t.Status = TimerRunning
	return *t, nil
}

// Complete ends a RUNNING or PAUSED timer. An open pause is closed first so it does not
// count as cooking time.
func (m *Manager) Complete(timerID string) (Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[timerID]
	if !ok {
		return Timer{}, ErrTimerNotFound
	}
	if t.Status == TimerCompleted {
		return Timer{}, fmt.Errorf("%w: timer already completed", ErrInvalidTimerState)
	}
	now := m.now()
	if t.Status == TimerPaused {
		closePause(t, now)
	}
	actual := now.Sub(t.StartTime) - t.TotalPausedDuration
	if actual < 0 {
		actual = 0
	}
	t.EndTime = &now
	t.ActualDuration = &actual
	t.Status = TimerCompleted

	m.logger.Info("cooking timer completed",
		zap.String("timer_id", t.ID),
		zap.String("order_id", t.OrderID),
		zap.Duration("actual", actual),
	)
	return *t, nil
}

func closePause(t *Timer, now time.Time) {
	if t.PausedTime == nil {
		return
	}
	if paused := now.Sub(*t.PausedTime); paused > 0 {
		t.TotalPausedDuration += paused
	}
	t.PausedTime = nil
}

func (m *Manager) Get(timerID string) (Timer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[timerID]
	if !ok {
		return Timer{}, false
	}
	return *t, true
}

// List returns timers in creation order.
func (m *Manager) List() []Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Timer, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.timers[id])
	}
	return out
}

func (m *Manager) ForOrder(orderID string) []Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Timer
	for _, id := range m.order {
		if t := m.timers[id]; t.OrderID == orderID {
			out = append(out, *t)
		}
	}
	return out
}

// Active returns the newest non-completed timer of an order.
func (m *Manager) Active(orderID string) (Timer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		t := m.timers[m.order[i]]
		if t.OrderID == orderID && t.Status != TimerCompleted {
			return *t, true
		}
	}
	return Timer{}, false
}

// Tick checks every open timer against its thresholds and latches newly crossed ones.
// Each threshold is returned at most once per timer.
func (m *Manager) Tick() []ThresholdEvent {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var events []ThresholdEvent
	for _, id := range m.order {
		t := m.timers[id]
		if t.Status == TimerCompleted || t.EstimatedDuration <= 0 {
			continue
		}
		elapsed := t.Elapsed(now)
		emit := func(th Threshold) {
			events = append(events, ThresholdEvent{TimerID: t.ID, OrderID: t.OrderID, Threshold: th, Elapsed: elapsed, At: now})
		}
		if !t.Alerts.HalfTime && elapsed*2 >= t.EstimatedDuration {
			t.Alerts.HalfTime = true
			emit(ThresholdHalfTime)
		}
		if !t.Alerts.NearComplete && elapsed*10 >= t.EstimatedDuration*9 {
			t.Alerts.NearComplete = true
			emit(ThresholdNearComplete)
		}
		if !t.Alerts.Overdue && elapsed > t.EstimatedDuration {
			t.Alerts.Overdue = true
			emit(ThresholdOverdue)
		}
	}
	return events
}

// Prune drops completed timers whose order no longer appears in the snapshot.
func (m *Manager) Prune(present func(orderID string) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		t := m.timers[id]
		if t.Status == TimerCompleted && !present(t.OrderID) {
			delete(m.timers, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed
}

// Views returns timers with live elapsed values, newest first.
func (m *Manager) Views() []View {
	now := m.now()
	list := m.List()
	views := make([]View, 0, len(list))
	for _, t := range list {
		views = append(views, NewView(t, now))
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Timer.StartTime.After(views[j].Timer.StartTime)
	})
	return views
}
