package handlers

import (
	"net/http"
	"strconv"

	"genfity-staff-queue/pkg/response"
)

func (h *Handler) StaffAlertsList(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	response.Success(w, map[string]any{
		"alerts":         h.Console.Alerts(all),
		"unacknowledged": h.Console.UnacknowledgedAlerts(),
	})
}

func (h *Handler) StaffAlertAcknowledge(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	alert, err := h.Console.AcknowledgeAlert(staff, readPathString(r, "alertId"))
	if err != nil {
		h.writeError(w, err, "Failed to acknowledge alert")
		return
	}
	response.Success(w, alert)
}

func (h *Handler) StaffAlertsClear(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]int{"cleared": h.Console.ClearAlerts()})
}
