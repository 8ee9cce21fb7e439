package orderapi

import (
	"context"
	"time"

	"genfity-staff-queue/internal/orders"
)

// Client is the remote order API as seen by the staff queue. The HTTP layer behind it
// is owned by the platform; implementations only translate calls.
type Client interface {
	orders.StatusWriter

	FetchOrderQueue(ctx context.Context) (Queue, error)
	SetPriority(ctx context.Context, orderID string, priority orders.Priority) error
	AddNote(ctx context.Context, orderID string, staffID string, note string) error
	FetchNotifications(ctx context.Context, staffID string, query NotificationQuery) (NotificationPage, error)
	MarkNotificationRead(ctx context.Context, staffID string, notificationID *string) error
}

// Queue is one full snapshot of the order queue.
type Queue struct {
	Orders  []orders.Order  `json:"orders"`
	Summary *orders.Summary `json:"summary"`
}

type NotificationPriority string

const (
	NotificationLow       NotificationPriority = "LOW"
	NotificationNormal    NotificationPriority = "NORMAL"
	NotificationHigh      NotificationPriority = "HIGH"
	NotificationUrgent    NotificationPriority = "URGENT"
	NotificationEmergency NotificationPriority = "EMERGENCY"
)

// IsCritical reports whether alerts for this priority must stay until dismissed.
func (p NotificationPriority) IsCritical() bool {
	return p == NotificationUrgent || p == NotificationEmergency
}

type Notification struct {
	ID             string               `json:"notificationId"`
	RecipientID    string               `json:"recipientId"`
	Type           string               `json:"type"`
	Priority       NotificationPriority `json:"priority"`
	Title          string               `json:"title"`
	Message        string               `json:"message"`
	RelatedOrderID *string              `json:"relatedOrderId"`
	IsRead         bool                 `json:"isRead"`
	SentAt         time.Time            `json:"sentAt"`
	ExpiresAt      *time.Time           `json:"expiresAt"`
}

type NotificationQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
	TotalCount    int            `json:"totalCount"`
}
