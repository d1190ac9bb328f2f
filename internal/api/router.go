package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/fwtrader/internal/api/handlers"
	"github.com/wonny/fwtrader/pkg/logger"
)

// Routes bundles the handlers mounted by NewRouter
type Routes struct {
	Cycles *handlers.CycleHandler
	State  *handlers.StateHandler
	Jobs   *handlers.JobHandler

	Performance *handlers.PerformanceHandler

	Metrics http.Handler // promhttp, nil = /metrics 미노출
	Stream  http.Handler // websocket hub, nil = /ws/cycles 미노출
}

// NewRouter mounts the non-nil routes
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics).Methods("GET")
	}
	if routes.Stream != nil {
		r.Handle("/ws/cycles", routes.Stream).Methods("GET")
	}

	// subrouter는 method 불일치를 404로 돌려주므로 root에 전체 경로로 등록
	if routes.Cycles != nil {
		r.HandleFunc("/api/cycles", routes.Cycles.List).Methods("GET")
		r.HandleFunc("/api/cycles/latest", routes.Cycles.Latest).Methods("GET")
		r.HandleFunc("/api/cycles/run", routes.Cycles.Run).Methods("POST")
	}
	if routes.State != nil {
		r.HandleFunc("/api/state", routes.State.Get).Methods("GET")
	}
	if routes.Performance != nil {
		r.HandleFunc("/api/performance", routes.Performance.Get).Methods("GET")
	}
	if routes.Jobs != nil {
		r.HandleFunc("/api/jobs", routes.Jobs.List).Methods("GET")
	}

	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	// logging이 바깥: recovery가 쓴 500도 기록됨
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "service": "fwtrader"})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the status written by the handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack keeps /ws/cycles upgradable behind the middleware
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// loggingMiddleware logs one line per request with the route template
// 5xx는 Warn, 나머지는 Debug
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			entry := log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"route":    route,
				"status":   rec.status,
				"duration": time.Since(start),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("HTTP request failed")
				return
			}
			entry.Debug("HTTP request")
		})
	}
}

// recoveryMiddleware turns a handler panic into a 500 JSON error
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					log.WithFields(map[string]interface{}{"panic": p, "path": r.URL.Path}).Error("Panic recovered")
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
