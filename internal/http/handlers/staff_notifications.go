package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"genfity-staff-queue/internal/alerts"
	"genfity-staff-queue/pkg/response"
)

// StaffNotifications returns the caller's inbox. refresh=true forces a fetch; a failed
// fetch still answers with the last known inbox.
func (h *Handler) StaffNotifications(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}

	var (
		inbox alerts.Inbox
		err   error
	)
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		inbox, err = h.Console.PollNotifications(r.Context(), staff)
	} else {
		inbox, err = h.Console.Inbox(r.Context(), staff)
	}
	if err != nil && inbox.FetchedAt == nil {
		h.writeError(w, err, "Failed to fetch notifications")
		return
	}
	response.Success(w, inbox)
}

func (h *Handler) StaffNotificationsRead(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}
	var body struct {
		NotificationID *string `json:"notificationId"`
	}
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	if body.NotificationID != nil && strings.TrimSpace(*body.NotificationID) == "" {
		body.NotificationID = nil
	}
	if err := h.Console.MarkNotificationRead(r.Context(), staff, body.NotificationID); err != nil {
		h.writeError(w, err, "Failed to mark notification read")
		return
	}
	inbox, _ := h.Console.Inbox(r.Context(), staff)
	response.SuccessWithMessage(w, inbox, "Notifications marked read")
}
