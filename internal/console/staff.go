package console

import (
	"context"

	"genfity-staff-queue/internal/alerts"
	"genfity-staff-queue/internal/bulk"
	"genfity-staff-queue/internal/cooking"
	"genfity-staff-queue/internal/orderapi"
	"genfity-staff-queue/internal/queue"
	"genfity-staff-queue/internal/queueview"
	"genfity-staff-queue/internal/ws"
)

// Timers

func (c *Console) StartTimer(ctx context.Context, staffID, orderID string, estimatedMinutes int) (cooking.View, error) {
	t, err := c.timers.Start(orderID, estimatedMinutes)
	if err != nil {
		return cooking.View{}, err
	}
	return c.timerChanged(ctx, staffID, t, "started"), nil
}

func (c *Console) PauseTimer(ctx context.Context, staffID, timerID string) (cooking.View, error) {
	t, err := c.timers.Pause(timerID)
	if err != nil {
		return cooking.View{}, err
	}
	return c.timerChanged(ctx, staffID, t, "paused"), nil
}

func (c *Console) ResumeTimer(ctx context.Context, staffID, timerID string) (cooking.View, error) {
	t, err := c.timers.Resume(timerID)
	if err != nil {
		return cooking.View{}, err
	}
	return c.timerChanged(ctx, staffID, t, "resumed"), nil
}

func (c *Console) CompleteTimer(ctx context.Context, staffID, timerID string) (cooking.View, error) {
	t, err := c.timers.Complete(timerID)
	if err != nil {
		return cooking.View{}, err
	}
	return c.timerChanged(ctx, staffID, t, "completed"), nil
}

func (c *Console) Timers() []cooking.View {
	return c.timers.Views()
}

func (c *Console) timerChanged(ctx context.Context, staffID string, t cooking.Timer, what string) cooking.View {
	c.audit(ctx, queue.StaffEvent{
		Type:    queue.StaffTimerChanged,
		StaffID: staffID,
		OrderID: t.OrderID,
		To:      string(t.Status),
		Detail:  what,
	})
	c.broadcastTimers()
	return cooking.NewView(t, c.now())
}

func (c *Console) broadcastTimers() {
	c.hub.Broadcast(ws.Message{Type: ws.TypeTimers, Data: c.timers.Views()})
}

// Selection

func (c *Console) selection(staffID string) *bulk.Selection {
	c.selMu.Lock()
	defer c.selMu.Unlock()
	s, ok := c.selections[staffID]
	if !ok {
		s = bulk.NewSelection()
		c.selections[staffID] = s
	}
	return s
}

// Selection returns the staff member's selection resolved against the current queue.
func (c *Console) Selection(staffID string) bulk.SelectionState {
	sel := c.selection(staffID)
	state := sel.State()
	present := sel.Resolve(c.project(staffID))
	ids := make([]string, 0, len(present))
	for _, o := range present {
		ids = append(ids, o.ID)
	}
	state.OrderIDs = ids
	return state
}

func (c *Console) SetSelection(staffID string, orderIDs []string) bulk.SelectionState {
	c.selection(staffID).Set(orderIDs)
	return c.Selection(staffID)
}

func (c *Console) ToggleSelection(staffID, orderID string) bulk.SelectionState {
	c.selection(staffID).Toggle(orderID)
	return c.Selection(staffID)
}

// SelectAll selects every order of the working set the filter and sort render.
func (c *Console) SelectAll(staffID string, f queueview.Filter, s queueview.Sort) bulk.SelectionState {
	list := c.Queue(staffID, f, s).Orders
	ids := make([]string, 0, len(list))
	for _, o := range list {
		ids = append(ids, o.ID)
	}
	c.selection(staffID).SelectAll(ids)
	return c.Selection(staffID)
}

func (c *Console) ClearSelection(staffID string) {
	c.selection(staffID).Clear()
}

// Bulk runs action over the staff member's selection. The selection is cleared only
// when at least one order was processed.
func (c *Console) Bulk(ctx context.Context, staffID string, action bulk.Action, opts bulk.Options) bulk.Result {
	opts.StaffID = staffID
	sel := c.selection(staffID)
	selected := sel.Resolve(c.project(staffID))

	res := c.executor.Execute(ctx, action, selected, opts)
	if res.Success {
		sel.Clear()
	}
	c.audit(ctx, queue.StaffEvent{
		Type:      queue.StaffBulkCompleted,
		StaffID:   staffID,
		Detail:    string(action),
		Processed: res.ProcessedCount,
		Failed:    res.FailedCount,
	})
	if res.ProcessedCount > 0 && action != bulk.ActionPrintOrders && action != bulk.ActionExportCSV {
		c.refreshAfterWrite(ctx)
	}
	return res
}

// Alerts

func (c *Console) Alerts(all bool) []alerts.OrderAlert {
	return c.alertStore.List(all)
}

func (c *Console) UnacknowledgedAlerts() int {
	return c.alertStore.Unacknowledged()
}

func (c *Console) AcknowledgeAlert(staffID, alertID string) (alerts.OrderAlert, error) {
	return c.alertStore.Acknowledge(alertID, staffID)
}

func (c *Console) ClearAlerts() int {
	return c.alertStore.Clear()
}

// Notifications

// Inbox starts tracking the staff member and fetches their notifications when no
// page has been fetched yet.
func (c *Console) Inbox(ctx context.Context, staffID string) (alerts.Inbox, error) {
	c.poller.Track(staffID)
	if inbox, ok := c.poller.Inbox(staffID); ok && inbox.FetchedAt != nil {
		return inbox, nil
	}
	if _, err := c.poller.Poll(ctx, staffID); err != nil {
		inbox, _ := c.poller.Inbox(staffID)
		return inbox, err
	}
	inbox, _ := c.poller.Inbox(staffID)
	return inbox, nil
}

// PollNotifications fetches the staff member's notifications now.
func (c *Console) PollNotifications(ctx context.Context, staffID string) (alerts.Inbox, error) {
	c.poller.Track(staffID)
	_, err := c.poller.Poll(ctx, staffID)
	inbox, _ := c.poller.Inbox(staffID)
	return inbox, err
}

func (c *Console) MarkNotificationRead(ctx context.Context, staffID string, notificationID *string) error {
	return c.poller.MarkRead(ctx, staffID, notificationID)
}

func (c *Console) pushNotifications(staffID string, fresh []orderapi.Notification) {
	_ = c.hub.SendTo(staffID, ws.Message{Type: ws.TypeNotification, Data: fresh})
}

// Connection hooks

// StaffConnected returns the initial messages for a new console and starts polling
// the staff member's notifications.
func (c *Console) StaffConnected(staffID string) []ws.Message {
	c.poller.Track(staffID)
	view := c.Queue(staffID, queueview.Filter{}, queueview.Sort{Field: queueview.SortByOrderTime})
	at := view.FetchedAt
	return []ws.Message{
		{Type: ws.TypeQueueState, Data: view, UpdatedAt: &at},
		{Type: ws.TypeTimers, Data: c.timers.Views()},
	}
}

// StaffDisconnected stops polling once the staff member has no console left.
func (c *Console) StaffDisconnected(staffID string, stillConnected int) {
	if stillConnected == 0 {
		c.poller.Untrack(staffID)
	}
}
