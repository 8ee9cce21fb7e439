package orders

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusPreparing  Status = "PREPARING"
	StatusReady      Status = "READY"
	StatusDelivered  Status = "DELIVERED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusPreparing,
	StatusReady,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
	StatusRefunded,
}

func ParseStatus(value string) (Status, bool) {
	upper := Status(strings.ToUpper(strings.TrimSpace(value)))
	for _, s := range AllStatuses {
		if s == upper {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no staff action can move the order further.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func ParsePriority(value string) (Priority, bool) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(value))); p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, true
	default:
		return "", false
	}
}

// Rank orders priorities by severity. Unknown values rank with LOW.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

type OrderItem struct {
	ID              string   `json:"id"`
	MenuItemID      string   `json:"menuItemId"`
	Name            string   `json:"name"`
	Quantity        int32    `json:"quantity"`
	UnitPrice       float64  `json:"unitPrice"`
	TotalPrice      float64  `json:"totalPrice"`
	Status          Status   `json:"status"`
	SpecialRequests *string  `json:"specialRequests"`
	Allergens       []string `json:"allergens,omitempty"`
	AssignedTo      *string  `json:"assignedTo"`
}

// Order is the remote system's record. The service keeps an immutable copy per fetch.
type Order struct {
	ID                    string        `json:"orderId"`
	OrderNumber           string        `json:"orderNumber"`
	TableNumber           *string       `json:"tableNumber"`
	Source                string        `json:"source"`
	CustomerName          string        `json:"customerName"`
	Items                 []OrderItem   `json:"items"`
	Subtotal              float64       `json:"subtotal"`
	TaxAmount             float64       `json:"taxAmount"`
	DiscountAmount        float64       `json:"discountAmount"`
	TotalAmount           float64       `json:"totalAmount"`
	Status                Status        `json:"status"`
	Priority              Priority      `json:"priority"`
	PaymentStatus         PaymentStatus `json:"paymentStatus"`
	OrderTime             time.Time     `json:"orderTime"`
	EstimatedCompleteTime *time.Time    `json:"estimatedCompleteTime"`
	ActualCompleteTime    *time.Time    `json:"actualCompleteTime"`
	AssignedStaff         *string       `json:"assignedStaff"`
	IsOverdue             bool          `json:"isOverdue"`
	OverdueMinutes        int           `json:"overdueMinutes"`
	Notes                 *string       `json:"notes"`
}

func (o Order) TableLabel() string {
	if o.TableNumber == nil {
		return ""
	}
	return strings.TrimSpace(*o.TableNumber)
}

func (o Order) HasSpecialRequests() bool {
	for _, item := range o.Items {
		if item.SpecialRequests != nil && strings.TrimSpace(*item.SpecialRequests) != "" {
			return true
		}
	}
	return false
}

var allergyKeywords = []string{"allerg", "gluten", "peanut", "nut free", "lactose", "dairy", "shellfish"}

// HasAllergyWarnings is true when any item lists allergens or mentions one in its special request.
func (o Order) HasAllergyWarnings() bool {
	for _, item := range o.Items {
		if len(item.Allergens) > 0 {
			return true
		}
		if item.SpecialRequests == nil {
			continue
		}
		req := strings.ToLower(*item.SpecialRequests)
		for _, kw := range allergyKeywords {
			if strings.Contains(req, kw) {
				return true
			}
		}
	}
	return false
}

// Summary carries the server-side counters returned alongside a queue snapshot.
type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
	Overdue  int            `json:"overdue"`
	Urgent   int            `json:"urgent"`
}

// Summarize computes queue counters locally. Used when the remote summary is absent.
func Summarize(list []Order) Summary {
	sum := Summary{Total: len(list), ByStatus: make(map[Status]int)}
	for _, o := range list {
		sum.ByStatus[o.Status]++
		if o.IsOverdue {
			sum.Overdue++
		}
		if o.Priority == PriorityUrgent {
			sum.Urgent++
		}
	}
	return sum
}
