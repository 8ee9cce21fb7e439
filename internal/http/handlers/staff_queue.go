package handlers

import (
	"net/http"

	"genfity-staff-queue/internal/queueview"
	"genfity-staff-queue/pkg/response"
)

func (h *Handler) StaffQueue(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	filter, sort, err := queueview.FromQuery(r.URL.Query())
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	response.Success(w, h.Console.Queue(staff, filter, sort))
}

func (h *Handler) StaffQueueRefresh(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	if _, err := h.Console.Refresh(r.Context()); err != nil {
		h.writeError(w, err, "Failed to refresh order queue")
		return
	}
	filter, sort, err := queueview.FromQuery(r.URL.Query())
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	response.SuccessWithMessage(w, h.Console.Queue(staff, filter, sort), "Queue refreshed")
}
