package response

import (
	"encoding/json"
	"net/http"
)

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeOrderNotFound     = "ORDER_NOT_FOUND"
	CodeTimerNotFound     = "TIMER_NOT_FOUND"
	CodeAlertNotFound     = "ALERT_NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidState      = "INVALID_STATE"
	CodeConflict          = "CONFLICT"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
	CodeUpstream          = "UPSTREAM_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func SuccessWithMessage(w http.ResponseWriter, data any, message string) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"message": message,
	})
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}
