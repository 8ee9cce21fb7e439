package handlers

import (
	"net/http"
	"strings"

	"genfity-staff-queue/internal/orders"
	"genfity-staff-queue/pkg/response"
)

func (h *Handler) StaffOrderDetail(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	orderID := readPathString(r, "orderId")
	order, err := h.Console.Order(staff, orderID)
	if err != nil {
		h.writeError(w, err, "Failed to load order")
		return
	}
	response.Success(w, map[string]any{
		"order":  order,
		"timers": h.Console.OrderTimers(orderID),
	})
}

func (h *Handler) StaffOrderStatus(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}

	var body struct {
		Status string  `json:"status"`
		Note   *string `json:"note"`
	}
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	target, valid := orders.ParseStatus(body.Status)
	if !valid {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, "Unknown order status")
		return
	}

	updated, err := h.Console.UpdateStatus(r.Context(), staff, readPathString(r, "orderId"), target, body.Note)
	if err != nil {
		h.writeError(w, err, "Failed to update order status")
		return
	}
	response.SuccessWithMessage(w, updated, "Order status updated")
}

func (h *Handler) StaffOrderAssign(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	orderID := readPathString(r, "orderId")
	if err := h.Console.Assign(r.Context(), staff, orderID); err != nil {
		h.writeError(w, err, "Failed to assign order")
		return
	}
	order, err := h.Console.Order(staff, orderID)
	if err != nil {
		response.SuccessWithMessage(w, nil, "Order assigned")
		return
	}
	response.SuccessWithMessage(w, order, "Order assigned")
}

func (h *Handler) StaffOrderCancel(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = decodeBody(r, &body)
	if strings.TrimSpace(body.Reason) == "" {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, "Cancellation reason is required")
		return
	}

	if err := h.Console.Cancel(r.Context(), staff, readPathString(r, "orderId"), body.Reason); err != nil {
		h.writeError(w, err, "Failed to cancel order")
		return
	}
	response.SuccessWithMessage(w, nil, "Order cancelled successfully")
}
