package cooking

import (
	"encoding/json"
	"time"
)

type TimerStatus string

const (
	TimerRunning   TimerStatus = "RUNNING"
	TimerPaused    TimerStatus = "PAUSED"
	TimerCompleted TimerStatus = "COMPLETED"
)

type Threshold string

const (
	ThresholdHalfTime     Threshold = "HALF_TIME"
	ThresholdNearComplete Threshold = "NEAR_COMPLETE"
	ThresholdOverdue      Threshold = "OVERDUE"
)

// AlertFlags are one-way latches. Once set they stay set for the life of the timer.
type AlertFlags struct {
	HalfTime     bool `json:"halfTime"`
	NearComplete bool `json:"nearComplete"`
	Overdue      bool `json:"overdue"`
}

type Timer struct {
	ID                  string
	OrderID             string
	StartTime           time.Time
	Status              TimerStatus
	EstimatedDuration   time.Duration
	TotalPausedDuration time.Duration
	PausedTime          *time.Time
	ResumeTime          *time.Time
	EndTime             *time.Time
	ActualDuration      *time.Duration
	Alerts              AlertFlags
}

// Elapsed is the cooking time excluding completed pauses. While paused the value is
// frozen at the pause point; after completion it is frozen at the end time.
func (t Timer) Elapsed(now time.Time) time.Duration {
	until := now
	switch {
	case t.Status == TimerCompleted && t.EndTime != nil:
		until = *t.EndTime
	case t.Status == TimerPaused && t.PausedTime != nil:
		until = *t.PausedTime
	}
	elapsed := until.Sub(t.StartTime) - t.TotalPausedDuration
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (t Timer) Remaining(now time.Time) time.Duration {
	left := t.EstimatedDuration - t.Elapsed(now)
	if left < 0 {
		return 0
	}
	return left
}

type timerJSON struct {
	ID                  string      `json:"timerId"`
	OrderID             string      `json:"orderId"`
	StartTime           time.Time   `json:"startTime"`
	Status              TimerStatus `json:"status"`
	EstimatedDuration   int64       `json:"estimatedDuration"`
	TotalPausedDuration int64       `json:"totalPausedDuration"`
	PausedTime          *time.Time  `json:"pausedTime,omitempty"`
	ResumeTime          *time.Time  `json:"resumeTime,omitempty"`
	EndTime             *time.Time  `json:"endTime,omitempty"`
	ActualDuration      *int64      `json:"actualDuration,omitempty"`
	Alerts              AlertFlags  `json:"alerts"`
}

// MarshalJSON renders durations as whole seconds.
func (t Timer) MarshalJSON() ([]byte, error) {
	out := timerJSON{
		ID:                  t.ID,
		OrderID:             t.OrderID,
		StartTime:           t.StartTime,
		Status:              t.Status,
		EstimatedDuration:   int64(t.EstimatedDuration / time.Second),
		TotalPausedDuration: int64(t.TotalPausedDuration / time.Second),
		PausedTime:          t.PausedTime,
		ResumeTime:          t.ResumeTime,
		EndTime:             t.EndTime,
		Alerts:              t.Alerts,
	}
	if t.ActualDuration != nil {
		secs := int64(*t.ActualDuration / time.Second)
		out.ActualDuration = &secs
	}
	return json.Marshal(out)
}

// View is a timer plus its live elapsed/remaining seconds at a given instant.
type View struct {
	Timer            Timer `json:"timer"`
	ElapsedSeconds   int64 `json:"elapsedSeconds"`
	RemainingSeconds int64 `json:"remainingSeconds"`
}

func NewView(t Timer, now time.Time) View {
	return View{
		Timer:            t,
		ElapsedSeconds:   int64(t.Elapsed(now) / time.Second),
		RemainingSeconds: int64(t.Remaining(now) / time.Second),
	}
}
