package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"genfity-staff-queue/internal/alerts"
	"genfity-staff-queue/internal/bulk"
	"genfity-staff-queue/internal/cooking"
	"genfity-staff-queue/internal/orderapi"
	"genfity-staff-queue/internal/orders"
	"genfity-staff-queue/internal/queue"
	"genfity-staff-queue/internal/queueview"
	"genfity-staff-queue/internal/snapshot"
	"genfity-staff-queue/internal/ws"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrOrderNotFound = errors.New("order not found in queue")

// Broadcaster is the console-facing side of the websocket hub.
type Broadcaster interface {
	Broadcast(msg ws.Message)
	SendTo(staffID string, msg ws.Message) error
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(ws.Message) {}
func (nopBroadcaster) SendTo(string, ws.Message) error { return nil }

type Config struct {
	RefreshInterval      time.Duration
	TickInterval         time.Duration
	NotificationInterval time.Duration
	Bulk                 bulk.Config
	Poller               alerts.PollerConfig
}

type Deps struct {
	Client     orderapi.Client
	Printer    bulk.Printer
	Exporter   bulk.Exporter
	Dispatcher *alerts.Dispatcher
	Hub        Broadcaster
	Auditor    *queue.Auditor
}

// Console is the single state container behind the staff API. Each component guards
// its own state; Console only sequences them.
type Console struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	store      *snapshot.Store
	machine    *orders.Machine
	timers     *cooking.Manager
	executor   *bulk.Executor
	alertStore *alerts.Store
	watcher    *alerts.Watcher
	dispatcher *alerts.Dispatcher
	poller     *alerts.Poller
	hub        Broadcaster
	auditor    *queue.Auditor

	selMu      sync.Mutex
	selections map[string]*bulk.Selection
}

func New(cfg Config, deps Deps, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = nopBroadcaster{}
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = alerts.NewDispatcher(alerts.DispatcherConfig{}, nil, logger)
	}

	c := &Console{
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		machine:    orders.NewMachine(deps.Client),
		alertStore: alerts.NewStore(),
		dispatcher: deps.Dispatcher,
		hub:        deps.Hub,
		auditor:    deps.Auditor,
		selections: make(map[string]*bulk.Selection),
	}
	c.store = snapshot.NewStore(deps.Client, logger.Named("snapshot"))
	c.timers = cooking.NewManager(c.store, logger.Named("cooking"))
	c.executor = bulk.NewExecutor(c.machine, deps.Client, deps.Printer, deps.Exporter, cfg.Bulk, logger.Named("bulk"))
	c.watcher = alerts.NewWatcher(alerts.NewFiredSet(), c.alertStore, logger.Named("alerts"))
	c.poller = alerts.NewPoller(deps.Client, c.dispatcher, cfg.Poller, logger.Named("notifications"))
	c.poller.OnNew(c.pushNotifications)
	c.store.Subscribe(c.onSnapshot)
	return c
}

// SetClock replaces the time source of every component. Tests only.
func (c *Console) SetClock(now func() time.Time) {
	c.now = now
	c.store.SetClock(now)
	c.timers.SetClock(now)
	c.alertStore.SetClock(now)
	c.poller.SetClock(now)
}

// Run drives the refresh, clock and notification loops until ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.store.Run(ctx, c.cfg.RefreshInterval)
		return nil
	})
	g.Go(func() error {
		c.runClock(ctx)
		return nil
	})
	g.Go(func() error {
		c.poller.Run(ctx, c.cfg.NotificationInterval)
		return nil
	})
	return g.Wait()
}

func (c *Console) runClock(ctx context.Context) {
	interval := c.cfg.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick advances timer latches and re-evaluates wait alerts against the current clock.
func (c *Console) Tick(ctx context.Context) []alerts.OrderAlert {
	var raised []alerts.OrderAlert
	for _, ev := range c.timers.Tick() {
		number := ""
		if o, ok := c.store.Order(ev.OrderID); ok {
			number = o.OrderNumber
		}
		if a, ok := c.watcher.TimerCrossed(ev, number); ok {
			raised = append(raised, a)
		}
	}
	if len(raised) > 0 {
		c.broadcastTimers()
	}
	raised = append(raised, c.watcher.EvaluateOrders(c.project(""), c.now())...)
	c.announce(ctx, raised)
	return raised
}

func (c *Console) announce(ctx context.Context, raised []alerts.OrderAlert) {
	for _, a := range raised {
		c.hub.Broadcast(ws.Message{Type: ws.TypeAlert, Data: a})
		c.dispatcher.NotifyAlert(ctx, a)
	}
}

func (c *Console) onSnapshot(snap snapshot.Snapshot) {
	present := make(map[string]struct{}, len(snap.Orders))
	for _, o := range snap.Orders {
		present[o.ID] = struct{}{}
	}
	inQueue := func(id string) bool {
		_, ok := present[id]
		return ok
	}
	if removed := c.timers.Prune(inQueue); removed > 0 {
		c.logger.Debug("pruned timers of departed orders", zap.Int("removed", removed))
	}
	c.watcher.Forget(inQueue, func(timerID string) bool {
		_, ok := c.timers.Get(timerID)
		return ok
	})

	at := snap.FetchedAt
	c.hub.Broadcast(ws.Message{
		Type:      ws.TypeQueueRefresh,
		Data:      map[string]any{"version": snap.Version, "summary": snap.Summary},
		UpdatedAt: &at,
	})
	c.announce(context.Background(), c.watcher.EvaluateOrders(orders.ProjectAll(snap.Orders, c.now(), ""), c.now()))
}

// Refresh forces a queue fetch now.
func (c *Console) Refresh(ctx context.Context) (snapshot.Snapshot, error) {
	return c.store.Refresh(ctx)
}

// RequestRefresh is the trigger used by push channels and write paths. It returns once a
// fetch that started after the call has finished, so the result reflects the event.
func (c *Console) RequestRefresh(ctx context.Context, reason string) error {
	_, err := c.store.RefreshNext(ctx)
	if err != nil {
		c.logger.Warn("triggered refresh failed", zap.String("reason", reason), zap.Error(err))
	}
	return err
}

func (c *Console) project(staffID string) []orders.StaffOrder {
	return orders.ProjectAll(c.store.Current().Orders, c.now(), staffID)
}

// QueueView is one rendered working set.
type QueueView struct {
	Version   uint64              `json:"version"`
	FetchedAt time.Time           `json:"fetchedAt"`
	Orders    []orders.StaffOrder `json:"orders"`
	Total     int                 `json:"total"`
	Matched   int                 `json:"matched"`
	Summary   orders.Summary      `json:"summary"`
	LastError string              `json:"lastError,omitempty"`
}

func (c *Console) Queue(staffID string, f queueview.Filter, s queueview.Sort) QueueView {
	snap := c.store.Current()
	all := orders.ProjectAll(snap.Orders, c.now(), staffID)
	list := queueview.Build(all, staffID, f, s)
	view := QueueView{
		Version:   snap.Version,
		FetchedAt: snap.FetchedAt,
		Orders:    list,
		Total:     len(all),
		Matched:   len(list),
		Summary:   snap.Summary,
	}
	if err := c.store.LastError(); err != nil {
		view.LastError = err.Error()
	}
	return view
}

func (c *Console) Order(staffID, orderID string) (orders.StaffOrder, error) {
	o, ok := c.store.Order(orderID)
	if !ok {
		return orders.StaffOrder{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return orders.Project(o, c.now(), staffID), nil
}

// OrderTimers returns the timers of one order.
func (c *Console) OrderTimers(orderID string) []cooking.View {
	now := c.now()
	list := c.timers.ForOrder(orderID)
	out := make([]cooking.View, 0, len(list))
	for _, t := range list {
		out = append(out, cooking.NewView(t, now))
	}
	return out
}

// refreshAfterWrite reports whether the store now holds a fetch taken after the write.
func (c *Console) refreshAfterWrite(ctx context.Context) bool {
	return c.RequestRefresh(ctx, "write") == nil
}

func (c *Console) audit(ctx context.Context, evt queue.StaffEvent) {
	_ = c.auditor.Publish(ctx, evt)
}

func (c *Console) UpdateStatus(ctx context.Context, staffID, orderID string, target orders.Status, note *string) (orders.StaffOrder, error) {
	current, ok := c.store.Order(orderID)
	if !ok {
		return orders.StaffOrder{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	updated, err := c.machine.Transition(ctx, current, target, staffID, note)
	if err != nil {
		return orders.StaffOrder{}, err
	}
	c.audit(ctx, queue.StaffEvent{
		Type:    queue.StaffStatusChanged,
		StaffID: staffID,
		OrderID: orderID,
		Order:   current.OrderNumber,
		From:    string(current.Status),
		To:      string(target),
	})
	if c.refreshAfterWrite(ctx) {
		if fresh, ok := c.store.Order(orderID); ok {
			updated = fresh
		}
	}
	return orders.Project(updated, c.now(), staffID), nil
}

func (c *Console) Assign(ctx context.Context, staffID, orderID string) error {
	current, ok := c.store.Order(orderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err := c.machine.Assign(ctx, current, staffID); err != nil {
		return err
	}
	c.audit(ctx, queue.StaffEvent{Type: queue.StaffAssigned, StaffID: staffID, OrderID: orderID, Order: current.OrderNumber})
	c.refreshAfterWrite(ctx)
	return nil
}

func (c *Console) Cancel(ctx context.Context, staffID, orderID, reason string) error {
	current, ok := c.store.Order(orderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err := c.machine.Cancel(ctx, current, reason); err != nil {
		return err
	}
	c.audit(ctx, queue.StaffEvent{
		Type:    queue.StaffCancelled,
		StaffID: staffID,
		OrderID: orderID,
		Order:   current.OrderNumber,
		From:    string(current.Status),
		To:      string(orders.StatusCancelled),
		Detail:  reason,
	})
	c.refreshAfterWrite(ctx)
	return nil
}
