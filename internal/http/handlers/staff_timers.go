package handlers

import (
	"context"
	"net/http"

	"genfity-staff-queue/internal/cooking"
	"genfity-staff-queue/pkg/response"
)

func (h *Handler) StaffOrderTimers(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.Console.OrderTimers(readPathString(r, "orderId")))
}

func (h *Handler) StaffTimerStart(w http.ResponseWriter, r *http.Request) {
	staff, ok := staffID(w, r)
	if !ok {
		return
	}

	var body struct {
		EstimatedMinutes int `json:"estimatedMinutes"`
	}
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	view, err := h.Console.StartTimer(r.Context(), staff, readPathString(r, "orderId"), body.EstimatedMinutes)
	if err != nil {
		h.writeError(w, err, "Failed to start cooking timer")
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    view,
		"message": "Cooking timer started",
	})
}

func (h *Handler) StaffTimersList(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.Console.Timers())
}

type timerAction func(ctx context.Context, staffID, timerID string) (cooking.View, error)

func (h *Handler) timerAction(action timerAction, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staff, ok := staffID(w, r)
		if !ok {
			return
		}
		view, err := action(r.Context(), staff, readPathString(r, "timerId"))
		if err != nil {
			h.writeError(w, err, "Failed to update cooking timer")
			return
		}
		response.SuccessWithMessage(w, view, message)
	}
}

func (h *Handler) StaffTimerPause(w http.ResponseWriter, r *http.Request) {
	h.timerAction(h.Console.PauseTimer, "Cooking timer paused")(w, r)
}

func (h *Handler) StaffTimerResume(w http.ResponseWriter, r *http.Request) {
	h.timerAction(h.Console.ResumeTimer, "Cooking timer resumed")(w, r)
}

func (h *Handler) StaffTimerComplete(w http.ResponseWriter, r *http.Request) {
	h.timerAction(h.Console.CompleteTimer, "Cooking timer completed")(w, r)
}
