package alerts

import (
	"fmt"
	"strings"
	"time"

	"genfity-staff-queue/internal/cooking"
	"genfity-staff-queue/internal/orders"

	"go.uber.org/zap"
)

type waitThreshold struct {
	minutes  int
	kind     AlertType
	severity Severity
}

var waitThresholds = []waitThreshold{
	{30, AlertWait30, SeverityWarning},
	{45, AlertWait45, SeverityWarning},
	{60, AlertWait60, SeverityCritical},
}

// Watcher turns threshold crossings into stored alerts. Every (subject, threshold) pair
// goes through the fired set, so repeated evaluation never duplicates an alert.
type Watcher struct {
	fired  *FiredSet
	store  *Store
	logger *zap.Logger
}

func NewWatcher(fired *FiredSet, store *Store, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{fired: fired, store: store, logger: logger}
}

// EvaluateOrders checks the server overdue flag and the client wait thresholds of every
// open order. The 20 minute badge is part of the projection and raises no alert.
func (w *Watcher) EvaluateOrders(list []orders.StaffOrder, now time.Time) []OrderAlert {
	var raised []OrderAlert
	for _, o := range list {
		if o.Status.IsTerminal() {
			continue
		}
		if o.IsOverdue && w.fired.Fire(o.ID, string(AlertOverdue)) {
			raised = append(raised, w.raise(OrderAlert{
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				Type:        AlertOverdue,
				Severity:    SeverityCritical,
				Message:     fmt.Sprintf("Order %s is overdue by %d minutes", label(o.OrderNumber, o.ID), o.OverdueMinutes),
				CreatedAt:   now,
			}))
		}
		for _, th := range waitThresholds {
			if o.ActualWaitTime < th.minutes || !w.fired.Fire(o.ID, string(th.kind)) {
				continue
			}
			raised = append(raised, w.raise(OrderAlert{
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				Type:        th.kind,
				Severity:    th.severity,
				Message:     fmt.Sprintf("Order %s has been waiting %d minutes", label(o.OrderNumber, o.ID), th.minutes),
				CreatedAt:   now,
			}))
		}
	}
	return raised
}

// TimerCrossed stores an alert for a cooking timer threshold.
func (w *Watcher) TimerCrossed(ev cooking.ThresholdEvent, orderNumber string) (OrderAlert, bool) {
	kind, severity := timerAlert(ev.Threshold)
	if kind == "" || !w.fired.Fire("timer:"+ev.TimerID, string(kind)) {
		return OrderAlert{}, false
	}
	name := label(orderNumber, ev.OrderID)
	var msg string
	switch kind {
	case AlertTimerHalfTime:
		msg = fmt.Sprintf("Order %s is halfway through cooking", name)
	case AlertTimerNearComplete:
		msg = fmt.Sprintf("Order %s is almost done cooking", name)
	default:
		msg = fmt.Sprintf("Order %s has passed its cooking estimate", name)
	}
	return w.raise(OrderAlert{
		OrderID:     ev.OrderID,
		OrderNumber: orderNumber,
		TimerID:     ev.TimerID,
		Type:        kind,
		Severity:    severity,
		Message:     msg,
		CreatedAt:   ev.At,
	}), true
}

// Forget drops latches of orders and timers that are no longer tracked.
func (w *Watcher) Forget(keepOrder func(orderID string) bool, keepTimer func(timerID string) bool) {
	w.fired.Retain(func(subject string) bool {
		if id, ok := strings.CutPrefix(subject, "timer:"); ok {
			return keepTimer(id)
		}
		return keepOrder(subject)
	})
}

func (w *Watcher) raise(a OrderAlert) OrderAlert {
	a = w.store.Add(a)
	w.logger.Info("order alert raised",
		zap.String("alert_id", a.ID),
		zap.String("order_id", a.OrderID),
		zap.String("type", string(a.Type)),
	)
	return a
}

func timerAlert(th cooking.Threshold) (AlertType, Severity) {
	switch th {
	case cooking.ThresholdHalfTime:
		return AlertTimerHalfTime, SeverityInfo
	case cooking.ThresholdNearComplete:
		return AlertTimerNearComplete, SeverityWarning
	case cooking.ThresholdOverdue:
		return AlertTimerOverdue, SeverityCritical
	default:
		return "", ""
	}
}

func label(orderNumber, orderID string) string {
	if orderNumber != "" {
		return orderNumber
	}
	return orderID
}
