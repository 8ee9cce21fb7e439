package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"genfity-staff-queue/internal/alerts"
	"genfity-staff-queue/internal/middleware"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withStaff(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID := r.URL.Query().Get("staff")
		if staffID == "" {
			next(w, r)
			return
		}
		ctx := middleware.WithAuthContext(r.Context(), &middleware.AuthContext{StaffID: staffID})
		next(w, r.WithContext(ctx))
	}
}

func dial(t *testing.T, srv *httptest.Server, staffID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/staff?staff=" + staffID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitConnected(t *testing.T, h *Hub, staffID string, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Connected(staffID) == want }, 2*time.Second, 10*time.Millisecond)
}

func TestServeStaffSendsInitialState(t *testing.T) {
	h := NewHub(Config{Heartbeat: time.Second}, nil)
	disconnected := make(chan string, 1)
	h.SetHooks(Hooks{
		OnConnect: func(staffID string) []Message {
			return []Message{{Type: TypeQueueState, Data: map[string]any{"staff": staffID}}}
		},
		OnDisconnect: func(staffID string) { disconnected <- staffID },
	})
	srv := httptest.NewServer(withStaff(h.ServeStaff))
	defer srv.Close()

	conn := dial(t, srv, "s-1")
	msg := readMessage(t, conn)
	assert.Equal(t, TypeQueueState, msg["type"])
	assert.Equal(t, "s-1", msg["data"].(map[string]any)["staff"])

	waitConnected(t, h, "s-1", 1)
	conn.Close()

	select {
	case id := <-disconnected:
		assert.Equal(t, "s-1", id)
	case <-time.After(2 * time.Second):
		t.Fatalf("disconnect hook not called")
	}
	waitConnected(t, h, "s-1", 0)
}

func TestDeliverTargetsStaff(t *testing.T) {
	h := NewHub(Config{Heartbeat: time.Second}, nil)
	srv := httptest.NewServer(withStaff(h.ServeStaff))
	defer srv.Close()

	a := dial(t, srv, "s-1")
	b := dial(t, srv, "s-2")
	waitConnected(t, h, "s-1", 1)
	waitConnected(t, h, "s-2", 1)

	err := h.Deliver(context.Background(), alerts.Cue{Channel: alerts.ChannelSound, StaffID: "s-2", Sound: "new-order"})
	require.NoError(t, err)

	msg := readMessage(t, b)
	assert.Equal(t, TypeCue, msg["type"])
	assert.Equal(t, "new-order", msg["data"].(map[string]any)["sound"])

	h.Broadcast(Message{Type: TypeQueueRefresh})
	assert.Equal(t, TypeQueueRefresh, readMessage(t, a)["type"])
	assert.Equal(t, TypeQueueRefresh, readMessage(t, b)["type"])

	assert.ErrorIs(t, h.Deliver(context.Background(), alerts.Cue{StaffID: "nobody"}), ErrNoSubscribers)
}

func TestServeStaffRequiresAuth(t *testing.T) {
	h := NewHub(Config{}, nil)
	srv := httptest.NewServer(withStaff(h.ServeStaff))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/staff"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	h := NewHub(Config{AllowedOrigins: []string{"https://staff.genfity.com"}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/ws/staff", nil)

	assert.True(t, h.checkOrigin(req))
	req.Header.Set("Origin", "https://staff.genfity.com")
	assert.True(t, h.checkOrigin(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.checkOrigin(req))
}
