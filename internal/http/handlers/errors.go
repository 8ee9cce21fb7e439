package handlers

import (
	"errors"
	"net/http"

	"genfity-staff-queue/internal/alerts"
	"genfity-staff-queue/internal/console"
	"genfity-staff-queue/internal/cooking"
	"genfity-staff-queue/internal/orderapi"
	"genfity-staff-queue/internal/orders"
	"genfity-staff-queue/internal/snapshot"
	"genfity-staff-queue/pkg/response"

	"go.uber.org/zap"
)

// writeError maps domain errors to the response envelope. Anything unrecognised came
// from the order API and is reported as an upstream failure.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	var transition *orders.TransitionError
	switch {
	case errors.Is(err, console.ErrOrderNotFound),
		errors.Is(err, cooking.ErrOrderNotFound),
		orderapi.IsNotFound(err):
		response.Error(w, http.StatusNotFound, response.CodeOrderNotFound, "Order not found")
	case errors.Is(err, cooking.ErrTimerNotFound):
		response.Error(w, http.StatusNotFound, response.CodeTimerNotFound, "Cooking timer not found")
	case errors.Is(err, alerts.ErrAlertNotFound):
		response.Error(w, http.StatusNotFound, response.CodeAlertNotFound, "Alert not found")
	case errors.As(err, &transition):
		response.Error(w, http.StatusConflict, response.CodeInvalidTransition, transition.Error())
	case errors.Is(err, orders.ErrOrderTerminal):
		response.Error(w, http.StatusConflict, response.CodeInvalidTransition, "Order is already closed")
	case errors.Is(err, cooking.ErrCannotStartCooking),
		errors.Is(err, cooking.ErrInvalidTimerState):
		response.Error(w, http.StatusConflict, response.CodeInvalidState, err.Error())
	case errors.Is(err, cooking.ErrInvalidEstimate),
		errors.Is(err, orders.ErrStaffRequired):
		response.Error(w, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, snapshot.ErrRefreshInProgress):
		response.Error(w, http.StatusConflict, response.CodeConflict, "Queue refresh already in progress")
	case errors.Is(err, alerts.ErrStaffNotTracked):
		response.Error(w, http.StatusConflict, response.CodeConflict, err.Error())
	default:
		h.Logger.Warn(fallback, zap.Error(err))
		response.Error(w, http.StatusBadGateway, response.CodeUpstream, fallback)
	}
}
