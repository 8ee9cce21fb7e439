package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"genfity-staff-queue/internal/console"
	"genfity-staff-queue/internal/middleware"
	"genfity-staff-queue/internal/orderapi"
	"genfity-staff-queue/internal/orders"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAPI struct {
	mu    sync.Mutex
	queue []orders.Order
}

func (s *stubAPI) FetchOrderQueue(context.Context) (orderapi.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return orderapi.Queue{Orders: append([]orders.Order(nil), s.queue...)}, nil
}

func (s *stubAPI) UpdateOrderStatus(_ context.Context, orderID string, status orders.Status, _ string, _ *string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queue {
		if s.queue[i].ID == orderID {
			s.queue[i].Status = status
			return s.queue[i], nil
		}
	}
	return orders.Order{}, &orderapi.APIError{StatusCode: http.StatusNotFound, Code: "ORDER_NOT_FOUND"}
}

func (s *stubAPI) AssignOrder(context.Context, string, string) error { return nil }

func (s *stubAPI) CancelOrder(_ context.Context, orderID string, _ string) error {
	_, err := s.UpdateOrderStatus(context.Background(), orderID, orders.StatusCancelled, "", nil)
	return err
}

func (s *stubAPI) SetPriority(context.Context, string, orders.Priority) error { return nil }

func (s *stubAPI) AddNote(context.Context, string, string, string) error { return nil }

func (s *stubAPI) FetchNotifications(context.Context, string, orderapi.NotificationQuery) (orderapi.NotificationPage, error) {
	return orderapi.NotificationPage{
		Notifications: []orderapi.Notification{{ID: "n-1", Title: "New order", Priority: orderapi.NotificationNormal}},
		UnreadCount:   1,
		TotalCount:    1,
	}, nil
}

func (s *stubAPI) MarkNotificationRead(context.Context, string, *string) error { return nil }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T, list ...orders.Order) http.Handler {
	t.Helper()
	c := console.New(console.Config{}, console.Deps{Client: &stubAPI{queue: list}}, nil)
	c.SetClock(func() time.Time { return now })
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	h := &Handler{Console: c, Logger: zap.NewNop()}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if staff := r.Header.Get("X-Test-Staff"); staff != "" {
				r = r.WithContext(middleware.WithAuthContext(r.Context(), &middleware.AuthContext{StaffID: staff}))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/queue", h.StaffQueue)
	r.Get("/orders/{orderId}", h.StaffOrderDetail)
	r.Post("/orders/{orderId}/status", h.StaffOrderStatus)
	r.Post("/orders/{orderId}/cancel", h.StaffOrderCancel)
	r.Post("/orders/{orderId}/timers", h.StaffTimerStart)
	r.Post("/timers/{timerId}/pause", h.StaffTimerPause)
	r.Put("/selection", h.StaffSelectionSet)
	r.Post("/bulk", h.StaffBulk)
	r.Post("/alerts/{alertId}/ack", h.StaffAlertAcknowledge)
	r.Get("/notifications", h.StaffNotifications)
	return r
}

func do(t *testing.T, srv http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Test-Staff", "s-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec.Code, payload
}

func pending(id string) orders.Order {
	return orders.Order{
		ID:          id,
		OrderNumber: "N-" + id,
		Status:      orders.StatusPending,
		Priority:    orders.PriorityNormal,
		OrderTime:   now.Add(-2 * time.Minute),
		TotalAmount: 40,
	}
}

func TestStatusCodes(t *testing.T) {
	confirmed := pending("2")
	confirmed.Status = orders.StatusConfirmed

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"queue", http.MethodGet, "/queue?status=PENDING", nil, http.StatusOK, ""},
		{"queue bad filter", http.MethodGet, "/queue?status=COOKING", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"detail missing", http.MethodGet, "/orders/nope", nil, http.StatusNotFound, "ORDER_NOT_FOUND"},
		{"unknown status", http.MethodPost, "/orders/1/status", map[string]string{"status": "DONE"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"illegal transition", http.MethodPost, "/orders/1/status", map[string]string{"status": "READY"}, http.StatusConflict, "INVALID_TRANSITION"},
		{"legal transition", http.MethodPost, "/orders/1/status", map[string]string{"status": "CONFIRMED"}, http.StatusOK, ""},
		{"cancel without reason", http.MethodPost, "/orders/2/cancel", map[string]string{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"timer on pending order", http.MethodPost, "/orders/3/timers", map[string]int{"estimatedMinutes": 10}, http.StatusConflict, "INVALID_STATE"},
		{"timer without estimate", http.MethodPost, "/orders/2/timers", map[string]int{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"timer started", http.MethodPost, "/orders/2/timers", map[string]int{"estimatedMinutes": 10}, http.StatusCreated, ""},
		{"pause unknown timer", http.MethodPost, "/timers/t-x/pause", nil, http.StatusNotFound, "TIMER_NOT_FOUND"},
		{"ack unknown alert", http.MethodPost, "/alerts/a-x/ack", nil, http.StatusNotFound, "ALERT_NOT_FOUND"},
		{"unknown bulk action", http.MethodPost, "/bulk", map[string]string{"action": "DELETE_ALL"}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, pending("1"), confirmed, pending("3"))
			status, payload := do(t, srv, tc.method, tc.path, tc.body)
			if status != tc.status {
				t.Fatalf("expected %d, got %d (%v)", tc.status, status, payload)
			}
			if tc.code != "" && payload["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, payload["error"])
			}
		})
	}
}

func TestMissingStaffIsUnauthorized(t *testing.T) {
	srv := newServer(t, pending("1"))
	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBulkReportsPartialFailure(t *testing.T) {
	ready := pending("2")
	ready.Status = orders.StatusReady
	srv := newServer(t, pending("1"), ready)

	status, _ := do(t, srv, http.MethodPut, "/selection", map[string]any{"orderIds": []string{"1", "2"}})
	require.Equal(t, http.StatusOK, status)

	status, payload := do(t, srv, http.MethodPost, "/bulk", map[string]string{"action": "UPDATE_STATUS", "newStatus": "CONFIRMED"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, payload["success"])

	data := payload["data"].(map[string]any)
	assert.EqualValues(t, 1, data["processedCount"])
	assert.EqualValues(t, 1, data["failedCount"])
}

func TestNotificationsInbox(t *testing.T) {
	srv := newServer(t)
	status, payload := do(t, srv, http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, status)

	data := payload["data"].(map[string]any)
	assert.EqualValues(t, 1, data["unreadCount"])
	assert.Len(t, data["notifications"], 1)
}
