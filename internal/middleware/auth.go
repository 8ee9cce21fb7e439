package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"genfity-staff-queue/internal/auth"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	StaffID     string
	Role        auth.UserRole
	Name        string
	MerchantID  *string
	IsOwner     bool
	Permissions []string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	payload := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// StaffAuth verifies the staff bearer token and the permission guarding the route.
// Websocket upgrades may carry the token in the "token" query parameter instead.
func StaffAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			if token == "" && strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				token = strings.TrimSpace(r.URL.Query().Get("token"))
			}
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Authorization token required", err.Error())
				return
			}

			if !claims.IsStaff() {
				writeAuthError(w, http.StatusForbidden, "Staff access required")
				return
			}

			if perm := auth.GetPermissionForAPI(r.URL.Path, r.Method); perm != nil && !auth.HasPermission(claims, *perm) {
				writeAuthError(w, http.StatusForbidden, "You do not have permission to access this resource")
				return
			}

			authCtx := &AuthContext{
				StaffID:     claims.StaffID,
				Role:        claims.Role,
				MerchantID:  claims.MerchantID,
				IsOwner:     claims.Role == auth.RoleMerchantOwner,
				Permissions: claims.Permissions,
			}
			if claims.Name != nil {
				authCtx.Name = *claims.Name
			}

			ctx := WithAuthContext(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
