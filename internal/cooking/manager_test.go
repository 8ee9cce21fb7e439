package cooking

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"genfity-staff-queue/internal/orders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[string]orders.Order

func (s mapSource) Order(orderID string) (orders.Order, bool) {
	o, ok := s[orderID]
	return o, ok
}

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T, src mapSource) (*Manager, *manualClock) {
	t.Helper()
	clock := &manualClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(src, nil)
	m.SetClock(clock.Now)
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("timer-%d", seq)
	}
	return m, clock
}

func cookingSource() mapSource {
	return mapSource{
		"confirmed":  {ID: "confirmed", Status: orders.StatusConfirmed},
		"processing": {ID: "processing", Status: orders.StatusProcessing},
		"preparing":  {ID: "preparing", Status: orders.StatusPreparing},
		"pending":    {ID: "pending", Status: orders.StatusPending},
	}
}

func TestStartRequiresCanStartCooking(t *testing.T) {
	m, _ := newTestManager(t, cookingSource())

	tests := []struct {
		orderID string
		wantErr error
	}{
		{"confirmed", nil},
		{"processing", nil},
		{"preparing", ErrCannotStartCooking},
		{"pending", ErrCannotStartCooking},
		{"missing", ErrOrderNotFound},
	}
	for _, tt := range tests {
		timer, err := m.Start(tt.orderID, 10)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, tt.orderID)
			continue
		}
		require.NoError(t, err, tt.orderID)
		assert.Equal(t, TimerRunning, timer.Status)
		assert.Equal(t, 10*time.Minute, timer.EstimatedDuration)
	}

	_, err := m.Start("confirmed", 0)
	assert.ErrorIs(t, err, ErrInvalidEstimate)
}

func TestTimerStateMachine(t *testing.T) {
	m, clock := newTestManager(t, cookingSource())
	timer, err := m.Start("confirmed", 5)
	require.NoError(t, err)

	_, err = m.Resume(timer.ID)
	assert.ErrorIs(t, err, ErrInvalidTimerState, "resume from RUNNING")

	_, err = m.Pause(timer.ID)
	require.NoError(t, err)
	_, err = m.Pause(timer.ID)
	assert.ErrorIs(t, err, ErrInvalidTimerState, "pause from PAUSED")

	clock.Advance(time.Minute)
	_, err = m.Resume(timer.ID)
	require.NoError(t, err)

	done, err := m.Complete(timer.ID)
	require.NoError(t, err)
	assert.Equal(t, TimerCompleted, done.Status)

	for name, op := range map[string]func(string) (Timer, error){
		"pause":    m.Pause,
		"resume":   m.Resume,
		"complete": m.Complete,
	} {
		_, err := op(timer.ID)
		assert.ErrorIs(t, err, ErrInvalidTimerState, name+" after completion")
	}

	_, err = m.Pause("nope")
	assert.ErrorIs(t, err, ErrTimerNotFound)
}

func TestActualDurationExcludesPauses(t *testing.T) {
	m, clock := newTestManager(t, cookingSource())
	timer, err := m.Start("confirmed", 30)
	require.NoError(t, err)
	require.Equal(t, 1800*time.Second, timer.EstimatedDuration)

	clock.Advance(600 * time.Second)
	_, err = m.Pause(timer.ID)
	require.NoError(t, err)
	clock.Advance(120 * time.Second)
	_, err = m.Resume(timer.ID)
	require.NoError(t, err)
	clock.Advance(1280 * time.Second)

	done, err := m.Complete(timer.ID)
	require.NoError(t, err)
	require.NotNil(t, done.ActualDuration)
	assert.Equal(t, 1880*time.Second, *done.ActualDuration)
	assert.Equal(t, 120*time.Second, done.TotalPausedDuration)

	raw, err := json.Marshal(done)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 1880, decoded["actualDuration"])
	assert.EqualValues(t, 1800, decoded["estimatedDuration"])
}

func TestCompleteWhilePausedClosesPause(t *testing.T) {
	m, clock := newTestManager(t, cookingSource())
	timer, _ := m.Start("confirmed", 10)

	clock.Advance(100 * time.Second)
	_, _ = m.Pause(timer.ID)
	clock.Advance(50 * time.Second)

	done, err := m.Complete(timer.ID)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Second, *done.ActualDuration)
	assert.Nil(t, done.PausedTime)
}

func TestElapsedMonotonicAndFrozenWhilePaused(t *testing.T) {
	m, clock := newTestManager(t, cookingSource())
	timer, _ := m.Start("confirmed", 10)

	var last time.Duration
	for i := 0; i < 5; i++ {
		clock.Advance(7 * time.Second)
		cur, _ := m.Get(timer.ID)
		elapsed := cur.Elapsed(clock.Now())
		assert.GreaterOrEqual(t, elapsed, last)
		last = elapsed
	}

	paused, _ := m.Pause(timer.ID)
	frozen := paused.Elapsed(clock.Now())
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		cur, _ := m.Get(timer.ID)
		assert.Equal(t, frozen, cur.Elapsed(clock.Now()))
	}

	_, _ = m.Resume(timer.ID)
	clock.Advance(5 * time.Second)
	cur, _ := m.Get(timer.ID)
	assert.Equal(t, frozen+5*time.Second, cur.Elapsed(clock.Now()))
}

func TestTickLatchesEachThresholdOnce(t *testing.T) {
	m, clock := newTestManager(t, cookingSource())
	timer, _ := m.Start("confirmed", 10)

	collect := func() []Threshold {
		var out []Threshold
		for _, ev := range m.Tick() {
			assert.Equal(t, timer.ID, ev.TimerID)
			out = append(out, ev.Threshold)
		}
		return out
	}

	clock.Advance(4 * time.Minute)
	assert.Empty(t, collect())

	clock.Advance(time.Minute)
	assert.Equal(t, []Threshold{ThresholdHalfTime}, collect())
	assert.Empty(t, collect(), "half time must not re-fire")

	clock.Advance(4 * time.Minute)
	assert.Equal(t, []Threshold{ThresholdNearComplete}, collect())

	clock.Advance(time.Minute)
	assert.Empty(t, collect(), "exactly at the estimate is not overdue")

	clock.Advance(time.Second)
	assert.Equal(t, []Threshold{ThresholdOverdue}, collect())

	for i := 0; i < 10; i++ {
		clock.Advance(time.Minute)
		assert.Empty(t, collect())
	}

	got, _ := m.Get(timer.ID)
	assert.Equal(t, AlertFlags{HalfTime: true, NearComplete: true, Overdue: true}, got.Alerts)
}

func TestTickSkipsPausedProgress(t *testing.T) {
	m, clock := newTestManager(t, cookingSource())
	timer, _ := m.Start("confirmed", 10)

	clock.Advance(4 * time.Minute)
	_, _ = m.Pause(timer.ID)
	clock.Advance(time.Hour)
	assert.Empty(t, m.Tick())
}

func TestActiveAndPrune(t *testing.T) {
	m, _ := newTestManager(t, cookingSource())
	first, _ := m.Start("confirmed", 10)
	second, _ := m.Start("confirmed", 12)

	active, ok := m.Active("confirmed")
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)

	_, _ = m.Complete(second.ID)
	active, ok = m.Active("confirmed")
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)

	_, _ = m.Complete(first.ID)
	_, ok = m.Active("confirmed")
	assert.False(t, ok)
	assert.Len(t, m.ForOrder("confirmed"), 2)

	removed := m.Prune(func(string) bool { return false })
	assert.Equal(t, 2, removed)
	assert.Empty(t, m.List())
}
