package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	OrderEventsBinding = "order.#"
	DeadRoutingKey     = "dead"

	StaffStatusChanged = "staff.order.status_changed"
	StaffAssigned      = "staff.order.assigned"
	StaffCancelled     = "staff.order.cancelled"
	StaffBulkCompleted = "staff.bulk.completed"
	StaffTimerChanged  = "staff.timer.changed"
)

// OrderEvent is the envelope the order platform publishes on the events exchange.
type OrderEvent struct {
	Type      string          `json:"type"`
	OrderID   json.RawMessage `json:"orderId"`
	Status    string          `json:"status"`
	UpdatedAt *time.Time      `json:"updatedAt"`
}

// OrderIDString accepts both numeric and string order IDs.
func (e OrderEvent) OrderIDString() string {
	raw := strings.TrimSpace(string(e.OrderID))
	return strings.Trim(raw, `"`)
}

// EnsureStaffTopology declares the events exchange, a dead-letter queue and the
// service queue bound to every order event.
func EnsureStaffTopology(qc *Client, exchange, queueName string) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(exchange); err != nil {
		return err
	}
	dlq := queueName + ".dlq"
	if _, err := qc.EnsureQueueWithArgs(dlq, nil); err != nil {
		return err
	}
	if err := qc.BindQueue(dlq, exchange, queueName+"."+DeadRoutingKey); err != nil {
		return err
	}
	_, err := qc.EnsureQueueWithArgs(queueName, amqp.Table{
		"x-dead-letter-exchange":    exchange,
		"x-dead-letter-routing-key": queueName + "." + DeadRoutingKey,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(queueName, exchange, OrderEventsBinding)
}

// RefreshFunc asks the service to re-fetch the queue. reason is logged.
type RefreshFunc func(ctx context.Context, reason string) error

// OrderEventHandler turns inbound order events into queue refreshes. Malformed
// or foreign envelopes are acked and dropped.
func OrderEventHandler(refresh RefreshFunc, logger *zap.Logger) HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, body []byte) error {
		var evt OrderEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			logger.Warn("drop malformed order event", zap.Error(err))
			return nil
		}
		if !strings.HasPrefix(evt.Type, "order.") {
			return nil
		}
		logger.Debug("order event",
			zap.String("type", evt.Type),
			zap.String("order_id", evt.OrderIDString()),
			zap.String("status", evt.Status),
		)
		return refresh(ctx, evt.Type)
	}
}

// StaffEvent is an audit record of a staff action.
type StaffEvent struct {
	Type      string    `json:"type"`
	StaffID   string    `json:"staffId"`
	OrderID   string    `json:"orderId,omitempty"`
	Order     string    `json:"orderNumber,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Processed int       `json:"processed,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	At        time.Time `json:"at"`
}

// Auditor publishes staff events. A nil publisher turns it into a no-op.
type Auditor struct {
	pub      Publisher
	exchange string
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuditor(pub Publisher, exchange string, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{pub: pub, exchange: exchange, logger: logger, now: time.Now}
}

var errMissingType = errors.New("staff event type is required")

// Publish never fails the caller's action; errors are logged and returned for tests.
func (a *Auditor) Publish(ctx context.Context, evt StaffEvent) error {
	if a == nil || a.pub == nil {
		return nil
	}
	if evt.Type == "" {
		return errMissingType
	}
	if evt.At.IsZero() {
		evt.At = a.now().UTC()
	}
	if err := a.pub.PublishJSON(ctx, a.exchange, evt.Type, evt); err != nil {
		a.logger.Warn("publish staff event failed", zap.String("type", evt.Type), zap.Error(err))
		return err
	}
	return nil
}
