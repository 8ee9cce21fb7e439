package handlers

import (
	"net/http"
	"strings"

	"genfity-staff-queue/internal/bulk"
	"genfity-staff-queue/internal/orders"
	"genfity-staff-queue/internal/queueview"
	"genfity-staff-queue/pkg/response"
)

func (h *Handler) StaffSelectionGet(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	response.Success(w, h.Console.Selection(staff))
}

func (h *Handler) StaffSelectionSet(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	var body struct {
		OrderIDs []string `json:"orderIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	response.Success(w, h.Console.SetSelection(staff, body.OrderIDs))
}

func (h *Handler) StaffSelectionToggle(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	var body struct {
		OrderID string `json:"orderId"`
	}
	if err := decodeBody(r, &body); err != nil || strings.TrimSpace(body.OrderID) == "" {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, "Order ID is required")
		return
	}
	response.Success(w, h.Console.ToggleSelection(staff, body.OrderID))
}

// StaffSelectionAll selects the working set rendered by the same query parameters as
// the queue listing.
func (h *Handler) StaffSelectionAll(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	filter, sort, err := queueview.FromQuery(r.URL.Query())
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	response.Success(w, h.Console.SelectAll(staff, filter, sort))
}

func (h *Handler) StaffSelectionClear(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	h.Console.ClearSelection(staff)
	response.Success(w, h.Console.Selection(staff))
}

type bulkRequest struct {
	Action    string `json:"action"`
	NewStatus string `json:"newStatus"`
	Priority  string `json:"priority"`
	Note      string `json:"note"`
	Reason    string `json:"reason"`
}

func (req bulkRequest) options() (bulk.Options, string) {
	opts := bulk.Options{Note: req.Note, Reason: req.Reason}
	if strings.TrimSpace(req.NewStatus) != "" {
		status, ok := orders.ParseStatus(req.NewStatus)
		if !ok {
			return opts, "Unknown order status"
		}
		opts.NewStatus = &status
	}
	if strings.TrimSpace(req.Priority) != "" {
		priority, ok := orders.ParsePriority(req.Priority)
		if !ok {
			return opts, "Unknown priority"
		}
		opts.Priority = &priority
	}
	return opts, ""
}

// StaffBulk runs one action over the caller's selection. Partial failures are part of
// the result, so the HTTP status is 200 whenever the request itself was valid.
func (h *Handler) StaffBulk(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}

	var body bulkRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	action, valid := bulk.ParseAction(body.Action)
	if !valid {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, "Unknown bulk action")
		return
	}
	opts, problem := body.options()
	if problem != "" {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, problem)
		return
	}

	res := h.Console.Bulk(r.Context(), staff, action, opts)
	response.JSON(w, http.StatusOK, map[string]any{
		"success": res.Success,
		"data":    res,
		"message": res.Message,
	})
}
