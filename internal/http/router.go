package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"genfity-staff-queue/internal/config"
	"genfity-staff-queue/internal/http/handlers"
	"genfity-staff-queue/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(logger *zap.Logger, cfg config.Config, h *handlers.Handler, staffSocket http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/staff", func(r chi.Router) {
		r.Use(setResponseHeader("Cache-Control", "no-store"))
		r.Use(middleware.StaffAuth(cfg.JWTSecret))

		r.Get("/queue", h.StaffQueue)
		r.Post("/queue/refresh", h.StaffQueueRefresh)

		r.Get("/orders/{orderId}", h.StaffOrderDetail)
		r.Post("/orders/{orderId}/status", h.StaffOrderStatus)
		r.Post("/orders/{orderId}/assign", h.StaffOrderAssign)
		r.Post("/orders/{orderId}/cancel", h.StaffOrderCancel)
		r.Get("/orders/{orderId}/timers", h.StaffOrderTimers)
		r.Post("/orders/{orderId}/timers", h.StaffTimerStart)

		r.Get("/timers", h.StaffTimersList)
		r.Post("/timers/{timerId}/pause", h.StaffTimerPause)
		r.Post("/timers/{timerId}/resume", h.StaffTimerResume)
		r.Post("/timers/{timerId}/complete", h.StaffTimerComplete)

		r.Get("/selection", h.StaffSelectionGet)
		r.Put("/selection", h.StaffSelectionSet)
		r.Delete("/selection", h.StaffSelectionClear)
		r.Post("/selection/toggle", h.StaffSelectionToggle)
		r.Post("/selection/all", h.StaffSelectionAll)
		r.Post("/bulk", h.StaffBulk)

		r.Get("/alerts", h.StaffAlertsList)
		r.Delete("/alerts", h.StaffAlertsClear)
		r.Post("/alerts/{alertId}/ack", h.StaffAlertAcknowledge)

		r.Get("/notifications", h.StaffNotifications)
		r.Post("/notifications/read", h.StaffNotificationsRead)
	})

	if staffSocket != nil {
		r.With(middleware.StaffAuth(cfg.JWTSecret)).Get("/ws/staff", staffSocket)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				// zap.String("origin", r.Header.Get("Origin")),
				// zap.String("userAgent", r.UserAgent()),
			)
		})
	}
}

func setResponseHeader(name string, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}
