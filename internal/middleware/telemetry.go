package middleware

import (
	"bufio"
	"fmt"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type telemetryRecorder struct {
	response http.ResponseWriter
	status   int
	bytes    int
}

type latencyWindow struct {
	samples []int64
	index   int
	count   int
}

func (w *latencyWindow) add(value int64, max int) {
	if len(w.samples) < max {
		w.samples = append(w.samples, value)
		w.count = len(w.samples)
		return
	}
	w.samples[w.index] = value
	w.index = (w.index + 1) % max
	w.count = max
}

func (w *latencyWindow) snapshot() []int64 {
	if w.count == 0 {
		return nil
	}
	values := make([]int64, 0, w.count)
	if len(w.samples) == w.count {
		values = append(values, w.samples...)
		return values
	}
	values = append(values, w.samples[:w.count]...)
	return values
}

// unmatchedRoute collects requests chi could not route so scanners cannot grow the map.
const unmatchedRoute = "unmatched"

type routeStats struct {
	latency  latencyWindow
	failures int
}

type routeSample struct {
	p50, p95 int64
	failures int
}

type routeAggregator struct {
	mu     sync.Mutex
	window int
	routes map[string]*routeStats
}

func newRouteAggregator(window int) *routeAggregator {
	return &routeAggregator{window: window, routes: make(map[string]*routeStats)}
}

func (a *routeAggregator) record(key string, millis int64, failed bool) routeSample {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats, ok := a.routes[key]
	if !ok {
		stats = &routeStats{}
		a.routes[key] = stats
	}
	stats.latency.add(millis, a.window)
	if failed {
		stats.failures++
	}

	out := routeSample{failures: stats.failures}
	values := stats.latency.snapshot()
	if len(values) == 0 {
		return out
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	out.p50, out.p95 = percentile(values, 0.5), percentile(values, 0.95)
	return out
}

// routeKey names the metric bucket: the chi pattern with its method, or unmatchedRoute.
func routeKey(r *http.Request) (key, pattern string) {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		pattern = rc.RoutePattern()
	}
	if pattern == "" {
		return unmatchedRoute, ""
	}
	return r.Method + " " + pattern, pattern
}

func percentile(values []int64, p float64) int64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

func (r *telemetryRecorder) Header() http.Header {
	return r.response.Header()
}

func (r *telemetryRecorder) WriteHeader(status int) {
	r.status = status
	r.response.WriteHeader(status)
}

func (r *telemetryRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.response.Write(data)
	r.bytes += n
	return n, err
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *telemetryRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.response.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *telemetryRecorder) Flush() {
	if f, ok := r.response.(http.Flusher); ok {
		f.Flush()
	}
}

// Telemetry logs every staff API request with rolling p50/p95 latency and a 5xx count
// per route. Health probes log at debug level; websocket consoles are logged once when
// the session ends and kept out of the latency windows.
func Telemetry(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	routes := newRouteAggregator(200)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &telemetryRecorder{response: w}

			next.ServeHTTP(recorder, r)

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)
			key, pattern := routeKey(r)
			requestID := RequestIDFrom(r.Context())
			if requestID == "" {
				requestID = r.Header.Get(RequestIDHeader)
			}

			if status == http.StatusSwitchingProtocols {
				logger.Debug("ws_session",
					zap.String("route", key),
					zap.String("requestId", requestID),
					zap.Duration("session", duration),
				)
				return
			}

			sample := routes.record(key, duration.Milliseconds(), status >= 500)
			log := logger.Info
			if r.URL.Path == "/health" && status < 400 {
				log = logger.Debug
			}
			log("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", key),
				zap.String("routePattern", pattern),
				zap.String("requestId", requestID),
				zap.Int("status", status),
				zap.Int("bytes", recorder.bytes),
				zap.Int64("duration_ms", duration.Milliseconds()),
				zap.Int64("p50_ms", sample.p50),
				zap.Int64("p95_ms", sample.p95),
				zap.Int("route_5xx", sample.failures),
			)
		})
	}
}
