package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"genfity-staff-queue/internal/alerts"
	"genfity-staff-queue/internal/middleware"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	TypeQueueState   = "queue.state"
	TypeQueueRefresh = "queue.refresh"
	TypeAlert        = "alert.raised"
	TypeCue          = "alert.cue"
	TypeNotification = "notifications.new"
	TypeTimers       = "timers.state"
	TypeError        = "error"

	writeWait = 10 * time.Second
)

var ErrNoSubscribers = errors.New("staff has no open console")

type Message struct {
	Type      string     `json:"type"`
	Data      any        `json:"data,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Hooks let the owner push initial state and track who is online.
type Hooks struct {
	OnConnect    func(staffID string) []Message
	OnDisconnect func(staffID string)
}

type Config struct {
	Heartbeat      time.Duration
	AllowedOrigins []string
}

type client struct {
	conn    *websocket.Conn
	staffID string
	writeMu sync.Mutex
}

func (c *client) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(value)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub fans queue state, alerts and cues out to connected staff consoles.
type Hub struct {
	logger   *zap.Logger
	cfg      Config
	upgrader websocket.Upgrader

	hooksMu sync.RWMutex
	hooks   Hooks

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

func NewHub(cfg Config, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	h := &Hub{
		logger: logger,
		cfg:    cfg,
		subs:   make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) SetHooks(hooks Hooks) {
	h.hooksMu.Lock()
	h.hooks = hooks
	h.hooksMu.Unlock()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

func (h *Hub) subscribe(c *client) (unsubscribe func()) {
	h.mu.Lock()
	if h.subs[c.staffID] == nil {
		h.subs[c.staffID] = make(map[*client]struct{})
	}
	h.subs[c.staffID][c] = struct{}{}
	h.mu.Unlock()

	return func() { h.drop(c) }
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.subs[c.staffID]
	if clients == nil {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.subs, c.staffID)
	}
}

// Connected reports how many consoles one staff member has open.
func (h *Hub) Connected(staffID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[staffID])
}

func (h *Hub) clients(staffID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0)
	for id, set := range h.subs {
		if staffID != "" && id != staffID {
			continue
		}
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) send(clients []*client, message any) int {
	sent := 0
	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			h.drop(c)
			continue
		}
		sent++
	}
	return sent
}

// Broadcast sends a message to every console.
func (h *Hub) Broadcast(msg Message) {
	h.send(h.clients(""), msg)
}

// SendTo sends a message to one staff member's consoles.
func (h *Hub) SendTo(staffID string, msg Message) error {
	if strings.TrimSpace(staffID) == "" {
		h.Broadcast(msg)
		return nil
	}
	if h.send(h.clients(staffID), msg) == 0 {
		return ErrNoSubscribers
	}
	return nil
}

// Deliver implements alerts.Sink. Cues without a staff ID go to everyone.
func (h *Hub) Deliver(_ context.Context, cue alerts.Cue) error {
	return h.SendTo(cue.StaffID, Message{Type: TypeCue, Data: cue})
}

// ServeStaff upgrades an authenticated request and keeps the console subscribed
// until it disconnects or the request context ends.
func (h *Hub) ServeStaff(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.StaffID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.hooksMu.RLock()
	hooks := h.hooks
	h.hooksMu.RUnlock()

	c := &client{conn: conn, staffID: authCtx.StaffID}
	unsubscribe := h.subscribe(c)
	defer func() {
		unsubscribe()
		if hooks.OnDisconnect != nil {
			hooks.OnDisconnect(c.staffID)
		}
	}()
	if hooks.OnConnect != nil {
		for _, msg := range hooks.OnConnect(c.staffID) {
			if err := c.writeJSON(msg); err != nil {
				return
			}
		}
	}
	h.logger.Debug("staff console connected", zap.String("staff_id", c.staffID))

	deadline := h.cfg.Heartbeat * 2
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.cfg.Heartbeat)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
