package alerts

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"genfity-staff-queue/internal/orderapi"

	"go.uber.org/zap"
)

var ErrStaffNotTracked = errors.New("staff inbox not tracked")

type NotificationSource interface {
	FetchNotifications(ctx context.Context, staffID string, query orderapi.NotificationQuery) (orderapi.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, staffID string, notificationID *string) error
}

// Inbox is the last fetched notification page of one staff member, with local read flags
// applied on top until the next fetch reconciles them.
type Inbox struct {
	StaffID       string                  `json:"staffId"`
	Notifications []orderapi.Notification `json:"notifications"`
	UnreadCount   int                     `json:"unreadCount"`
	TotalCount    int                     `json:"totalCount"`
	FetchedAt     *time.Time              `json:"fetchedAt,omitempty"`
	LastError     string                  `json:"lastError,omitempty"`
}

type inboxState struct {
	seen  map[string]struct{}
	inbox Inbox
}

type PollerConfig struct {
	Limit int
	Retry RetryPolicy
}

// Poller fetches notifications for every tracked staff member and pushes the ones not
// seen before through the dispatcher.
type Poller struct {
	source     NotificationSource
	dispatcher *Dispatcher
	cfg        PollerConfig
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	staff map[string]*inboxState

	onNew func(staffID string, fresh []orderapi.Notification)
}

func NewPoller(source NotificationSource, dispatcher *Dispatcher, cfg PollerConfig, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	return &Poller{
		source:     source,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		staff:      make(map[string]*inboxState),
	}
}

func (p *Poller) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// OnNew registers a callback that receives fresh notifications after each poll.
func (p *Poller) OnNew(fn func(staffID string, fresh []orderapi.Notification)) {
	p.mu.Lock()
	p.onNew = fn
	p.mu.Unlock()
}

// Track adds a staff member to the polling set. It is a no-op when already tracked.
func (p *Poller) Track(staffID string) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.staff[staffID]; !ok {
		p.staff[staffID] = &inboxState{
			seen:  make(map[string]struct{}),
			inbox: Inbox{StaffID: staffID, Notifications: []orderapi.Notification{}},
		}
	}
}

func (p *Poller) Untrack(staffID string) {
	p.mu.Lock()
	delete(p.staff, staffID)
	p.mu.Unlock()
}

func (p *Poller) Tracked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.staff))
	for id := range p.staff {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (p *Poller) Inbox(staffID string) (Inbox, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.staff[staffID]
	if !ok {
		return Inbox{}, false
	}
	out := st.inbox
	out.Notifications = append([]orderapi.Notification(nil), st.inbox.Notifications...)
	return out, true
}

// Poll fetches one staff inbox with retries. Unread, unexpired notifications that were
// not seen before are dispatched and returned. A failed fetch keeps the previous inbox.
func (p *Poller) Poll(ctx context.Context, staffID string) ([]orderapi.Notification, error) {
	p.Track(staffID)

	var page orderapi.NotificationPage
	err := p.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		page, err = p.source.FetchNotifications(ctx, staffID, orderapi.NotificationQuery{Limit: p.cfg.Limit})
		return err
	})

	now := p.now()
	p.mu.Lock()
	st, ok := p.staff[staffID]
	if !ok {
		p.mu.Unlock()
		return nil, ErrStaffNotTracked
	}
	if err != nil {
		st.inbox.LastError = err.Error()
		p.mu.Unlock()
		p.logger.Warn("notification fetch failed", zap.String("staff_id", staffID), zap.Error(err))
		return nil, err
	}

	live := make([]orderapi.Notification, 0, len(page.Notifications))
	var fresh []orderapi.Notification
	for _, n := range page.Notifications {
		if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
			continue
		}
		live = append(live, n)
		if _, dup := st.seen[n.ID]; dup {
			continue
		}
		st.seen[n.ID] = struct{}{}
		if !n.IsRead {
			fresh = append(fresh, n)
		}
	}
	st.inbox = Inbox{
		StaffID:       staffID,
		Notifications: live,
		UnreadCount:   page.UnreadCount,
		TotalCount:    page.TotalCount,
		FetchedAt:     &now,
	}
	onNew := p.onNew
	p.mu.Unlock()

	if p.dispatcher != nil {
		for _, n := range fresh {
			p.dispatcher.Notify(ctx, staffID, n)
		}
	}
	if onNew != nil && len(fresh) > 0 {
		onNew(staffID, fresh)
	}
	return fresh, nil
}

// PollAll polls every tracked staff member and returns the first error seen.
func (p *Poller) PollAll(ctx context.Context) error {
	var firstErr error
	for _, staffID := range p.Tracked() {
		if _, err := p.Poll(ctx, staffID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.PollAll(ctx)
		}
	}
}

// MarkRead flips the local read flag first and then tells the remote API. A nil id marks
// every notification. The local flag stays set on failure; the next fetch reconciles it.
func (p *Poller) MarkRead(ctx context.Context, staffID string, notificationID *string) error {
	p.mu.Lock()
	if st, ok := p.staff[staffID]; ok {
		for i := range st.inbox.Notifications {
			n := &st.inbox.Notifications[i]
			if n.IsRead || (notificationID != nil && n.ID != *notificationID) {
				continue
			}
			n.IsRead = true
			if st.inbox.UnreadCount > 0 {
				st.inbox.UnreadCount--
			}
		}
		if notificationID == nil {
			st.inbox.UnreadCount = 0
		}
	}
	p.mu.Unlock()

	if err := p.source.MarkNotificationRead(ctx, staffID, notificationID); err != nil {
		p.logger.Warn("mark notification read failed", zap.String("staff_id", staffID), zap.Error(err))
		return err
	}
	return nil
}
