package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"genfity-staff-queue/internal/orders"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Action string

const (
	ActionAssignToSelf Action = "ASSIGN_TO_SELF"
	ActionUpdateStatus Action = "UPDATE_STATUS"
	ActionSetPriority  Action = "SET_PRIORITY"
	ActionAddNote      Action = "ADD_NOTE"
	ActionPrintOrders  Action = "PRINT_ORDERS"
	ActionExportCSV    Action = "EXPORT_TO_CSV"
)

func ParseAction(value string) (Action, bool) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(value))); a {
	case ActionAssignToSelf, ActionUpdateStatus, ActionSetPriority, ActionAddNote, ActionPrintOrders, ActionExportCSV:
		return a, true
	default:
		return "", false
	}
}

type Options struct {
	StaffID   string           `json:"staffId,omitempty"`
	NewStatus *orders.Status   `json:"newStatus,omitempty"`
	Priority  *orders.Priority `json:"priority,omitempty"`
	Note      string           `json:"note,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

type ItemError struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Message     string `json:"message"`
}

// Result reports a best-effort batch. ProcessedCount + FailedCount always equals the
// number of selected orders.
type Result struct {
	Action         Action      `json:"action"`
	Success        bool        `json:"success"`
	ProcessedCount int         `json:"processedCount"`
	FailedCount    int         `json:"failedCount"`
	Errors         []ItemError `json:"errors"`
	Message        string      `json:"message"`
	ExportLocation string      `json:"exportLocation,omitempty"`
}

// Remote covers the per-order calls that bypass the status machine.
type Remote interface {
	SetPriority(ctx context.Context, orderID string, priority orders.Priority) error
	AddNote(ctx context.Context, orderID string, staffID string, note string) error
}

type Printer interface {
	PrintOrder(ctx context.Context, order orders.StaffOrder) (string, error)
}

// Exporter opens one export per batch; rows are added per order and Finish publishes it.
type Exporter interface {
	Begin(ctx context.Context, staffID string) (ExportSession, error)
}

type ExportSession interface {
	Add(order orders.StaffOrder) error
	Finish(ctx context.Context) (string, error)
}

type Executor struct {
	machine  *orders.Machine
	remote   Remote
	printer  Printer
	exporter Exporter
	limiter  *rate.Limiter
	logger   *zap.Logger
}

type Config struct {
	// RatePerSecond caps outbound calls per second. Zero disables throttling.
	RatePerSecond float64
}

func NewExecutor(machine *orders.Machine, remote Remote, printer Printer, exporter Exporter, cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Executor{
		machine:  machine,
		remote:   remote,
		printer:  printer,
		exporter: exporter,
		limiter:  limiter,
		logger:   logger,
	}
}

// Execute applies action to every selected order in sequence. Per-order failures never
// abort the batch; cancelling ctx marks the orders not yet attempted as failed.
func (e *Executor) Execute(ctx context.Context, action Action, selected []orders.StaffOrder, opts Options) Result {
	res := Result{Action: action, Errors: []ItemError{}}

	if err := e.validate(action, opts); err != nil {
		for _, o := range selected {
			res.fail(o, err)
		}
		res.finish(len(selected))
		return res
	}

	var session ExportSession
	if action == ActionExportCSV && len(selected) > 0 {
		s, err := e.exporter.Begin(ctx, opts.StaffID)
		if err != nil {
			for _, o := range selected {
				res.fail(o, fmt.Errorf("start export: %w", err))
			}
			res.finish(len(selected))
			return res
		}
		session = s
	}

	var exported []orders.StaffOrder
	for i, o := range selected {
		if err := ctx.Err(); err != nil {
			for _, rest := range selected[i:] {
				res.fail(rest, err)
			}
			break
		}
		if err := e.apply(ctx, action, o, opts, session); err != nil {
			res.fail(o, err)
			continue
		}
		res.ProcessedCount++
		if session != nil {
			exported = append(exported, o)
		}
	}

	if session != nil && len(exported) > 0 {
		location, err := session.Finish(ctx)
		if err != nil {
			for _, o := range exported {
				res.fail(o, fmt.Errorf("finish export: %w", err))
			}
			res.ProcessedCount -= len(exported)
		} else {
			res.ExportLocation = location
		}
	}

	res.finish(len(selected))
	e.logger.Info("bulk action finished",
		zap.String("action", string(action)),
		zap.Int("selected", len(selected)),
		zap.Int("processed", res.ProcessedCount),
		zap.Int("failed", res.FailedCount),
	)
	return res
}

var (
	ErrUnknownAction     = errors.New("unknown bulk action")
	ErrStatusRequired    = errors.New("new status is required")
	ErrPriorityRequired  = errors.New("priority is required")
	ErrNoteRequired      = errors.New("note is required")
	ErrCannotAssignSelf  = errors.New("order cannot be assigned to you")
	ErrActionUnavailable = errors.New("bulk action is not configured")
)

func (e *Executor) validate(action Action, opts Options) error {
	switch action {
	case ActionAssignToSelf:
		if strings.TrimSpace(opts.StaffID) == "" {
			return orders.ErrStaffRequired
		}
	case ActionUpdateStatus:
		if opts.NewStatus == nil {
			return ErrStatusRequired
		}
	case ActionSetPriority:
		if opts.Priority == nil {
			return ErrPriorityRequired
		}
	case ActionAddNote:
		if strings.TrimSpace(opts.Note) == "" {
			return ErrNoteRequired
		}
	case ActionPrintOrders:
		if e.printer == nil {
			return ErrActionUnavailable
		}
	case ActionExportCSV:
		if e.exporter == nil {
			return ErrActionUnavailable
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return nil
}

func (e *Executor) apply(ctx context.Context, action Action, o orders.StaffOrder, opts Options, session ExportSession) error {
	switch action {
	case ActionAssignToSelf:
		if !o.CanAssignToSelf {
			return ErrCannotAssignSelf
		}
		if err := e.wait(ctx); err != nil {
			return err
		}
		return e.machine.Assign(ctx, o.Order, opts.StaffID)
	case ActionUpdateStatus:
		// Illegal targets fail inside the machine without a remote call, so they skip the throttle.
		if orders.CanTransition(o.Status, *opts.NewStatus) {
			if err := e.wait(ctx); err != nil {
				return err
			}
		}
		var note *string
		if opts.Note != "" {
			note = &opts.Note
		}
		_, err := e.machine.Transition(ctx, o.Order, *opts.NewStatus, opts.StaffID, note)
		return err
	case ActionSetPriority:
		if err := e.wait(ctx); err != nil {
			return err
		}
		return e.remote.SetPriority(ctx, o.ID, *opts.Priority)
	case ActionAddNote:
		if err := e.wait(ctx); err != nil {
			return err
		}
		return e.remote.AddNote(ctx, o.ID, opts.StaffID, strings.TrimSpace(opts.Note))
	case ActionPrintOrders:
		_, err := e.printer.PrintOrder(ctx, o)
		return err
	case ActionExportCSV:
		return session.Add(o)
	}
	return ErrUnknownAction
}

func (e *Executor) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (r *Result) fail(o orders.StaffOrder, err error) {
	r.FailedCount++
	r.Errors = append(r.Errors, ItemError{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Message:     fmt.Sprintf("order %s: %v", displayNumber(o), err),
	})
}

func (r *Result) finish(total int) {
	r.Success = r.ProcessedCount > 0
	switch {
	case total == 0:
		r.Message = "No orders selected"
	case r.FailedCount == 0:
		r.Message = fmt.Sprintf("Processed %d orders", r.ProcessedCount)
	case r.ProcessedCount == 0:
		r.Message = fmt.Sprintf("All %d orders failed", r.FailedCount)
	default:
		r.Message = fmt.Sprintf("Processed %d of %d orders, %d failed", r.ProcessedCount, total, r.FailedCount)
	}
}

func displayNumber(o orders.StaffOrder) string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return o.ID
}
