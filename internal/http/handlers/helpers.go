package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"genfity-staff-queue/internal/middleware"
	"genfity-staff-queue/pkg/response"

	"github.com/go-chi/chi/v5"
)

func readPathString(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}

// staffID writes a 401 and returns false when the request carries no staff identity.
func staffID(w http.ResponseWriter, r *http.Request) (string, bool) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || strings.TrimSpace(authCtx.StaffID) == "" {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Staff identity is required")
		return "", false
	}
	return authCtx.StaffID, true
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
