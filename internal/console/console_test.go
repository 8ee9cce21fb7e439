package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"genfity-staff-queue/internal/alerts"
	"genfity-staff-queue/internal/bulk"
	"genfity-staff-queue/internal/cooking"
	"genfity-staff-queue/internal/orderapi"
	"genfity-staff-queue/internal/orders"
	"genfity-staff-queue/internal/queue"
	"genfity-staff-queue/internal/queueview"
	"genfity-staff-queue/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusCall struct {
	orderID string
	status  orders.Status
}

type fakeClient struct {
	mu            sync.Mutex
	queue         []orders.Order
	fetchErr      error
	fetches       int
	statusCalls   []statusCall
	assigned      []string
	cancelled     []string
	failStatusFor map[string]error
	notifications []orderapi.Notification
	readCalls     int

	// gate, when set, holds the next fetch after it has copied the queue.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeClient) FetchOrderQueue(context.Context) (orderapi.Queue, error) {
	f.mu.Lock()
	f.fetches++
	if f.fetchErr != nil {
		f.mu.Unlock()
		return orderapi.Queue{}, f.fetchErr
	}
	q := orderapi.Queue{Orders: append([]orders.Order(nil), f.queue...)}
	gate, entered := f.gate, f.entered
	f.gate, f.entered = nil, nil
	f.mu.Unlock()

	if gate != nil {
		close(entered)
		<-gate
	}
	return q, nil
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeClient) setStatus(orderID string, status orders.Status) {
	for i := range f.queue {
		if f.queue[i].ID == orderID {
			f.queue[i].Status = status
		}
	}
}

func (f *fakeClient) UpdateOrderStatus(_ context.Context, orderID string, status orders.Status, _ string, _ *string) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failStatusFor[orderID]; err != nil {
		return orders.Order{}, err
	}
	f.statusCalls = append(f.statusCalls, statusCall{orderID, status})
	f.setStatus(orderID, status)
	for _, o := range f.queue {
		if o.ID == orderID {
			return o, nil
		}
	}
	return orders.Order{}, errors.New("unknown order")
}

func (f *fakeClient) AssignOrder(_ context.Context, orderID string, staffID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, orderID)
	for i := range f.queue {
		if f.queue[i].ID == orderID {
			id := staffID
			f.queue[i].AssignedStaff = &id
		}
	}
	return nil
}

func (f *fakeClient) CancelOrder(_ context.Context, orderID string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	f.setStatus(orderID, orders.StatusCancelled)
	return nil
}

func (f *fakeClient) SetPriority(context.Context, string, orders.Priority) error { return nil }

func (f *fakeClient) AddNote(context.Context, string, string, string) error { return nil }

func (f *fakeClient) FetchNotifications(context.Context, string, orderapi.NotificationQuery) (orderapi.NotificationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return orderapi.NotificationPage{
		Notifications: append([]orderapi.Notification(nil), f.notifications...),
		UnreadCount:   len(f.notifications),
		TotalCount:    len(f.notifications),
	}, nil
}

func (f *fakeClient) MarkNotificationRead(context.Context, string, *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	return nil
}

type fakeHub struct {
	mu       sync.Mutex
	messages []ws.Message
	direct   map[string][]ws.Message
}

func (h *fakeHub) Broadcast(msg ws.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

func (h *fakeHub) SendTo(staffID string, msg ws.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.direct == nil {
		h.direct = map[string][]ws.Message{}
	}
	h.direct[staffID] = append(h.direct[staffID], msg)
	return nil
}

func (h *fakeHub) count(kind string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.messages {
		if m.Type == kind {
			n++
		}
	}
	return n
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishJSON(_ context.Context, _ string, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func order(id string, status orders.Status, placedMinutesAgo int) orders.Order {
	return orders.Order{
		ID:          id,
		OrderNumber: "N-" + id,
		Status:      status,
		Priority:    orders.PriorityNormal,
		OrderTime:   base.Add(-time.Duration(placedMinutesAgo) * time.Minute),
		TotalAmount: 50,
	}
}

type fixture struct {
	console *Console
	client  *fakeClient
	hub     *fakeHub
	pub     *recordingPublisher
	clock   *clock
}

func newFixture(t *testing.T, list ...orders.Order) fixture {
	t.Helper()
	fc := &fakeClient{queue: list, failStatusFor: map[string]error{}}
	hub := &fakeHub{}
	pub := &recordingPublisher{}
	clk := &clock{t: base}
	c := New(Config{}, Deps{
		Client:  fc,
		Hub:     hub,
		Auditor: queue.NewAuditor(pub, "genfity.events", nil),
	}, nil)
	c.SetClock(clk.Now)
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	return fixture{console: c, client: fc, hub: hub, pub: pub, clock: clk}
}

func TestQueueRendersFilteredView(t *testing.T) {
	f := newFixture(t,
		order("1", orders.StatusPending, 5),
		order("2", orders.StatusPreparing, 10),
		order("3", orders.StatusReady, 2),
	)

	view := f.console.Queue("s-1", queueview.Filter{Statuses: []orders.Status{orders.StatusPending, orders.StatusReady}}, queueview.Sort{Field: queueview.SortByOrderTime})
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 2, view.Matched)
	require.Len(t, view.Orders, 2)
	assert.Equal(t, "1", view.Orders[0].ID)
	assert.True(t, view.Orders[0].CanAccept)
	assert.Equal(t, 1, view.Summary.ByStatus[orders.StatusPreparing])
	assert.Equal(t, 1, f.hub.count(ws.TypeQueueRefresh))
}

func TestOrderNotFound(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusPending, 0))
	_, err := f.console.Order("s-1", "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	got, err := f.console.Order("s-1", "1")
	require.NoError(t, err)
	assert.True(t, got.CanAssignToSelf)
}

func TestUpdateStatusWritesThroughAndRefreshes(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusPending, 0))
	before := f.client.fetches

	updated, err := f.console.UpdateStatus(context.Background(), "s-1", "1", orders.StatusConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, updated.Status)
	assert.Equal(t, []statusCall{{"1", orders.StatusConfirmed}}, f.client.statusCalls)
	assert.Greater(t, f.client.fetches, before)
	assert.Equal(t, []string{queue.StaffStatusChanged}, f.pub.keys)
}

func TestUpdateStatusKeepsRemoteResultWhenRefreshFails(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusPending, 0))
	f.client.mu.Lock()
	f.client.fetchErr = errors.New("gateway timeout")
	f.client.mu.Unlock()

	updated, err := f.console.UpdateStatus(context.Background(), "s-1", "1", orders.StatusConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, updated.Status)
	assert.False(t, updated.CanAccept)
}

func TestUpdateStatusWaitsOutRefreshInFlight(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusPending, 0))
	gate, entered := make(chan struct{}), make(chan struct{})
	f.client.mu.Lock()
	f.client.gate, f.client.entered = gate, entered
	f.client.mu.Unlock()

	stale := make(chan error, 1)
	go func() {
		_, err := f.console.Refresh(context.Background())
		stale <- err
	}()
	<-entered
	before := f.client.fetchCount()

	type result struct {
		order orders.StaffOrder
		err   error
	}
	done := make(chan result, 1)
	go func() {
		o, err := f.console.UpdateStatus(context.Background(), "s-1", "1", orders.StatusConfirmed, nil)
		done <- result{o, err}
	}()
	require.Eventually(t, func() bool { return f.console.store.Waiting() == 1 }, 2*time.Second, time.Millisecond)

	close(gate)
	require.NoError(t, <-stale)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, orders.StatusConfirmed, res.order.Status)
	assert.Equal(t, before+1, f.client.fetchCount())

	got, err := f.console.Order("s-1", "1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, got.Status)
}

func TestIllegalTransitionMakesNoCall(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusPending, 0))

	_, err := f.console.UpdateStatus(context.Background(), "s-1", "1", orders.StatusReady, nil)
	assert.ErrorIs(t, err, orders.ErrIllegalTransition)
	assert.Empty(t, f.client.statusCalls)
	assert.Empty(t, f.pub.keys)
}

func TestAssignAndCancel(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusPending, 0), order("2", orders.StatusReady, 0))

	require.NoError(t, f.console.Assign(context.Background(), "s-1", "1"))
	got, err := f.console.Order("s-1", "1")
	require.NoError(t, err)
	assert.False(t, got.CanAssignToSelf)

	require.NoError(t, f.console.Cancel(context.Background(), "s-1", "1", "customer left"))
	assert.Equal(t, []string{"1"}, f.client.cancelled)

	err = f.console.Cancel(context.Background(), "s-1", "2", "too late")
	assert.ErrorIs(t, err, orders.ErrIllegalTransition)
	assert.Equal(t, []string{queue.StaffAssigned, queue.StaffCancelled}, f.pub.keys)
}

func TestBulkClearsSelectionOnlyOnSuccess(t *testing.T) {
	f := newFixture(t,
		order("1", orders.StatusPending, 0),
		order("2", orders.StatusPending, 0),
		order("3", orders.StatusReady, 0),
	)
	f.client.failStatusFor["2"] = errors.New("remote 500")

	state := f.console.SetSelection("s-1", []string{"1", "2", "3", "gone"})
	assert.Equal(t, []string{"1", "2", "3"}, state.OrderIDs)

	status := orders.StatusConfirmed
	res := f.console.Bulk(context.Background(), "s-1", bulk.ActionUpdateStatus, bulk.Options{NewStatus: &status})
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ProcessedCount)
	assert.Equal(t, 2, res.FailedCount)
	assert.Empty(t, f.console.Selection("s-1").OrderIDs)

	f.console.SetSelection("s-1", []string{"3"})
	res = f.console.Bulk(context.Background(), "s-1", bulk.ActionUpdateStatus, bulk.Options{NewStatus: &status})
	assert.False(t, res.Success)
	assert.Equal(t, []string{"3"}, f.console.Selection("s-1").OrderIDs)
}

func TestSelectAllUsesWorkingSet(t *testing.T) {
	f := newFixture(t,
		order("1", orders.StatusPending, 0),
		order("2", orders.StatusPreparing, 0),
	)
	state := f.console.SelectAll("s-1", queueview.Filter{Statuses: []orders.Status{orders.StatusPreparing}}, queueview.Sort{})
	assert.True(t, state.AllSelected)
	assert.Equal(t, []string{"2"}, state.OrderIDs)

	state = f.console.ToggleSelection("s-1", "1")
	assert.False(t, state.AllSelected)
	assert.Equal(t, []string{"1", "2"}, state.OrderIDs)

	f.console.ClearSelection("s-1")
	assert.Empty(t, f.console.Selection("s-1").OrderIDs)
}

func TestWaitAlertsFireOncePerThreshold(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusPreparing, 29))
	assert.Empty(t, f.console.Alerts(true))

	f.clock.Advance(16 * time.Minute)
	raised := f.console.Tick(context.Background())
	require.Len(t, raised, 2)
	assert.Equal(t, alerts.AlertWait30, raised[0].Type)
	assert.Equal(t, alerts.AlertWait45, raised[1].Type)

	assert.Empty(t, f.console.Tick(context.Background()))
	assert.Equal(t, 2, f.console.UnacknowledgedAlerts())
	assert.Equal(t, 2, f.hub.count(ws.TypeAlert))

	ack, err := f.console.AcknowledgeAlert("s-1", raised[0].ID)
	require.NoError(t, err)
	assert.True(t, ack.Acknowledged)
	assert.Equal(t, 1, f.console.UnacknowledgedAlerts())
	assert.Equal(t, 2, f.console.ClearAlerts())
}

func TestServerOverdueRaisesAlertOnRefresh(t *testing.T) {
	o := order("1", orders.StatusPreparing, 5)
	o.IsOverdue = true
	o.OverdueMinutes = 3
	f := newFixture(t, o)

	list := f.console.Alerts(false)
	require.Len(t, list, 1)
	assert.Equal(t, alerts.AlertOverdue, list[0].Type)

	_, err := f.console.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.console.Alerts(true), 1)
}

func TestTimerLifecycleRaisesTimerAlerts(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusProcessing, 0), order("2", orders.StatusPending, 0))

	_, err := f.console.StartTimer(context.Background(), "s-1", "2", 10)
	assert.ErrorIs(t, err, cooking.ErrCannotStartCooking)

	view, err := f.console.StartTimer(context.Background(), "s-1", "1", 10)
	require.NoError(t, err)
	assert.Equal(t, cooking.TimerRunning, view.Timer.Status)

	f.clock.Advance(5 * time.Minute)
	raised := f.console.Tick(context.Background())
	require.Len(t, raised, 1)
	assert.Equal(t, alerts.AlertTimerHalfTime, raised[0].Type)
	assert.Equal(t, "N-1", raised[0].OrderNumber)

	_, err = f.console.PauseTimer(context.Background(), "s-1", view.Timer.ID)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	assert.Empty(t, f.console.Tick(context.Background()))

	_, err = f.console.ResumeTimer(context.Background(), "s-1", view.Timer.ID)
	require.NoError(t, err)
	f.clock.Advance(6 * time.Minute)
	raised = f.console.Tick(context.Background())
	require.Len(t, raised, 2)
	assert.Equal(t, alerts.AlertTimerNearComplete, raised[0].Type)
	assert.Equal(t, alerts.AlertTimerOverdue, raised[1].Type)

	done, err := f.console.CompleteTimer(context.Background(), "s-1", view.Timer.ID)
	require.NoError(t, err)
	assert.Equal(t, cooking.TimerCompleted, done.Timer.Status)
	assert.Len(t, f.console.OrderTimers("1"), 1)
	assert.GreaterOrEqual(t, f.hub.count(ws.TypeTimers), 4)
}

func TestCompletedTimersPrunedWhenOrderLeaves(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusProcessing, 0))
	view, err := f.console.StartTimer(context.Background(), "s-1", "1", 10)
	require.NoError(t, err)
	_, err = f.console.CompleteTimer(context.Background(), "s-1", view.Timer.ID)
	require.NoError(t, err)

	f.client.mu.Lock()
	f.client.queue = nil
	f.client.mu.Unlock()
	_, err = f.console.Refresh(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.console.Timers())
}

func TestRequestRefreshReportsUpstreamFailure(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusPending, 0))
	f.client.mu.Lock()
	f.client.fetchErr = errors.New("upstream down")
	f.client.mu.Unlock()

	assert.Error(t, f.console.RequestRefresh(context.Background(), "test"))
	view := f.console.Queue("s-1", queueview.Filter{}, queueview.Sort{})
	assert.Len(t, view.Orders, 1)
	assert.Equal(t, "upstream down", view.LastError)
}

func TestInboxPollsOnceAndPushes(t *testing.T) {
	f := newFixture(t)
	f.client.notifications = []orderapi.Notification{
		{ID: "n-1", Type: "NEW_ORDER", Priority: orderapi.NotificationHigh, SentAt: base},
	}

	inbox, err := f.console.Inbox(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Len(t, inbox.Notifications, 1)
	assert.Len(t, f.hub.direct["s-1"], 1)

	_, err = f.console.Inbox(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Len(t, f.hub.direct["s-1"], 1)

	require.NoError(t, f.console.MarkNotificationRead(context.Background(), "s-1", nil))
	inbox, err = f.console.Inbox(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, 0, inbox.UnreadCount)
	assert.Equal(t, 1, f.client.readCalls)
}

func TestStaffConnectionHooks(t *testing.T) {
	f := newFixture(t, order("1", orders.StatusPending, 0))
	msgs := f.console.StaffConnected("s-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, ws.TypeQueueState, msgs[0].Type)
	assert.Equal(t, 1, msgs[0].Data.(QueueView).Total)

	f.console.StaffDisconnected("s-1", 0)
	_, err := f.console.PollNotifications(context.Background(), "s-1")
	require.NoError(t, err)
}
