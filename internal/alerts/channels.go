package alerts

import (
	"context"
	"strings"
	"time"

	"genfity-staff-queue/internal/orderapi"

	"go.uber.org/zap"
)

type Channel string

const (
	ChannelSound     Channel = "SOUND"
	ChannelVibration Channel = "VIBRATION"
	ChannelDesktop   Channel = "DESKTOP"
)

// Cue is what a device should play, vibrate or show for one notification or alert.
type Cue struct {
	Channel            Channel                       `json:"channel"`
	StaffID            string                        `json:"staffId,omitempty"`
	NotificationID     string                        `json:"notificationId,omitempty"`
	AlertID            string                        `json:"alertId,omitempty"`
	Priority           orderapi.NotificationPriority `json:"priority"`
	Sound              string                        `json:"sound,omitempty"`
	Pattern            []int                         `json:"pattern,omitempty"`
	Title              string                        `json:"title,omitempty"`
	Body               string                        `json:"body,omitempty"`
	AutoDismissMs      int64                         `json:"autoDismissMs,omitempty"`
	RequireInteraction bool                          `json:"requireInteraction,omitempty"`
}

// Sink delivers cues of one channel. A refusal such as a denied desktop permission is
// reported as an error and only affects that channel.
type Sink interface {
	Deliver(ctx context.Context, cue Cue) error
}

type SinkFunc func(ctx context.Context, cue Cue) error

func (f SinkFunc) Deliver(ctx context.Context, cue Cue) error { return f(ctx, cue) }

type DispatcherConfig struct {
	SoundEnabled     bool
	VibrationEnabled bool
	DesktopEnabled   bool
	AutoDismiss      time.Duration
}

type Dispatcher struct {
	sinks       map[Channel]Sink
	enabled     map[Channel]bool
	autoDismiss time.Duration
	logger      *zap.Logger
}

func NewDispatcher(cfg DispatcherConfig, sinks map[Channel]Sink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AutoDismiss <= 0 {
		cfg.AutoDismiss = 5 * time.Second
	}
	return &Dispatcher{
		sinks: sinks,
		enabled: map[Channel]bool{
			ChannelSound:     cfg.SoundEnabled,
			ChannelVibration: cfg.VibrationEnabled,
			ChannelDesktop:   cfg.DesktopEnabled,
		},
		autoDismiss: cfg.AutoDismiss,
		logger:      logger,
	}
}

var soundByType = map[string]string{
	"NEW_ORDER":       "new-order",
	"ORDER_READY":     "order-ready",
	"ORDER_OVERDUE":   "urgent-alert",
	"ORDER_CANCELED":  "order-cancelled",
	"ORDER_CANCELLED": "order-cancelled",
	"KITCHEN_ALERT":   "kitchen-bell",
	"SYSTEM":          "notification",
}

func SoundFor(notificationType string) string {
	if s, ok := soundByType[strings.ToUpper(strings.TrimSpace(notificationType))]; ok {
		return s
	}
	return "notification"
}

// VibrationPattern returns on/off durations in milliseconds.
func VibrationPattern(p orderapi.NotificationPriority) []int {
	switch p {
	case orderapi.NotificationHigh:
		return []int{200, 100, 200, 100, 200}
	case orderapi.NotificationUrgent, orderapi.NotificationEmergency:
		return []int{500, 200, 500, 200, 500, 200, 500, 200, 500}
	default:
		return []int{200}
	}
}

func (d *Dispatcher) Enabled(ch Channel) bool { return d.enabled[ch] && d.sinks[ch] != nil }

// Notify pushes a server notification through every enabled channel and returns the cues
// that were delivered.
func (d *Dispatcher) Notify(ctx context.Context, staffID string, n orderapi.Notification) []Cue {
	return d.dispatch(ctx, Cue{
		StaffID:        staffID,
		NotificationID: n.ID,
		Priority:       n.Priority,
		Sound:          SoundFor(n.Type),
		Title:          n.Title,
		Body:           n.Message,
	})
}

// NotifyAlert pushes a locally raised order alert to every console.
func (d *Dispatcher) NotifyAlert(ctx context.Context, a OrderAlert) []Cue {
	priority := orderapi.NotificationNormal
	sound := "notification"
	switch a.Severity {
	case SeverityCritical:
		priority, sound = orderapi.NotificationUrgent, "urgent-alert"
	case SeverityWarning:
		priority = orderapi.NotificationHigh
	}
	return d.dispatch(ctx, Cue{
		AlertID:  a.ID,
		Priority: priority,
		Sound:    sound,
		Title:    string(a.Type),
		Body:     a.Message,
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, base Cue) []Cue {
	var delivered []Cue
	for _, ch := range []Channel{ChannelSound, ChannelVibration, ChannelDesktop} {
		if !d.Enabled(ch) {
			continue
		}
		cue := d.shape(ch, base)
		if err := d.sinks[ch].Deliver(ctx, cue); err != nil {
			d.logger.Warn("alert channel skipped",
				zap.String("channel", string(ch)),
				zap.String("notification_id", base.NotificationID),
				zap.String("alert_id", base.AlertID),
				zap.Error(err),
			)
			continue
		}
		delivered = append(delivered, cue)
	}
	return delivered
}

func (d *Dispatcher) shape(ch Channel, base Cue) Cue {
	cue := Cue{
		Channel:        ch,
		StaffID:        base.StaffID,
		NotificationID: base.NotificationID,
		AlertID:        base.AlertID,
		Priority:       base.Priority,
	}
	switch ch {
	case ChannelSound:
		cue.Sound = base.Sound
	case ChannelVibration:
		cue.Pattern = VibrationPattern(base.Priority)
	case ChannelDesktop:
		cue.Title = base.Title
		cue.Body = base.Body
		if base.Priority.IsCritical() {
			cue.RequireInteraction = true
		} else {
			cue.AutoDismissMs = d.autoDismiss.Milliseconds()
		}
	}
	return cue
}
