package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"schwer/internal/logger"
	"schwer/internal/metrics"
	"schwer/internal/models"
	"schwer/internal/sysinfo"
	"schwer/internal/web"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 15 * time.Second

	requestIDHeader = "X-Request-ID"
)

// LoadController is the subset of the load service the HTTP layer needs.
type LoadController interface {
	UpdateCPULoad(pct int64)
	UpdateMemLoad(size int64)
	CPUUsage() models.CPULevels
	MemUsage() models.MemStats
	Settings() models.LoadSettings
}

// Server wraps the HTTP API server.
type Server struct {
	httpServer *http.Server
	stream     *Stream
	cancel     context.CancelFunc
}

type handler struct {
	lc       LoadController
	metrics  *metrics.Collector
	hostInfo func() sysinfo.HostInfo
}

type healthResponse struct {
	Settings models.LoadSettings `json:"settings"`
	Host     sysinfo.HostInfo    `json:"host"`
}

// NewServer builds the HTTP server for the dashboard page and load API.
func NewServer(cfg *models.Config, lc LoadController) *Server {
	collector := metrics.Global()
	stream := NewStream(lc, collector, time.Second)
	srv := &http.Server{
		Addr:         cfg.APIBind,
		Handler:      newRouter(lc, collector, stream),
		ErrorLog:     logger.GetLogger(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return &Server{httpServer: srv, stream: stream}
}

func newRouter(lc LoadController, collector *metrics.Collector, stream *Stream) http.Handler {
	h := &handler{lc: lc, metrics: collector, hostInfo: sysinfo.CollectHost}
	mux := http.NewServeMux()
	mux.Handle("/", web.Handler())
	mux.HandleFunc("/cpu", h.cpu)
	mux.HandleFunc("/mem", h.mem)
	mux.HandleFunc("/api/health", h.health)
	mux.HandleFunc("/metrics", h.prometheus)
	if stream != nil {
		mux.Handle("/ws", stream)
	}
	return withRequestID(withAccessLog(collector, withCORS(mux)))
}

// Start boots the API server and the live stream asynchronously.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.stream.Run(ctx)

	go func() {
		logger.Info("API 服务监听 %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API 服务异常退出: %v", err)
		}
	}()
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.httpServer == nil {
		return nil
	}
	s.stream.CloseAll()
	s.httpServer.SetKeepAlivesEnabled(false)
	return s.httpServer.Shutdown(ctx)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Settings: h.lc.Settings(),
		Host:     h.hostInfo(),
	})
}

func (h *handler) prometheus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.metrics.RenderPrometheus()))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withAccessLog(collector *metrics.Collector, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			// websocket 升级需要原始 ResponseWriter 的 Hijacker
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		collector.ObserveHTTPRequest(metricPath(r.URL.Path), rec.status)
		logger.Debug("%s %s %d %s request_id=%s", r.Method, r.URL.Path, rec.status, time.Since(start), r.Header.Get(requestIDHeader))
	})
}

func metricPath(path string) string {
	switch path {
	case "/cpu", "/mem", "/api/health", "/metrics":
		return path
	default:
		return "/"
	}
}
