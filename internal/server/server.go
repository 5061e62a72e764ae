package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/startup"
)

var log = logging.Named("http")

const (
	statusRunning = "running"
	statusIdle    = "idle"
	statusFailing = "degraded"
)

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Running  bool   `json:"running"`
	Total    int    `json:"total"`
	Finished int    `json:"finished"`
	Done     int    `json:"done"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// NewRouter returns the routes of the status server.
func NewRouter(progress *Progress) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	r.HandleFunc("/health", healthHandler(progress)).Methods(http.MethodGet, http.MethodHead).Name("health")
	r.HandleFunc("/livez", livenessHandler).Methods(http.MethodGet, http.MethodHead).Name("liveness")
	r.HandleFunc("/version", versionHandler).Methods(http.MethodGet).Name("version")
	return r
}

func healthHandler(progress *Progress) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := progress.Snapshot()
		resp := HealthResponse{
			Version:      startup.Version,
			Uptime:       s.Uptime.Round(time.Second).String(),
			Running:      s.Running,
			Total:        s.Total,
			Finished:     s.Finished,
			Done:         s.Totals.Done,
			Skipped:      s.Totals.Skipped,
			Failed:       s.Totals.Failed,
			GoVersion:    runtime.Version(),
			NumCPU:       runtime.NumCPU(),
			NumGoroutine: runtime.NumGoroutine(),
		}
		switch {
		case s.Totals.Failed > 0:
			resp.Status = statusFailing
		case s.Running:
			resp.Status = statusRunning
		default:
			resp.Status = statusIdle
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			writeJSON(w, resp)
		}
	}
}

// A failing file does not make the process unhealthy, so liveness only
// says the server answers.
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response: %v", err)
	}
}

// Server is the optional status server that runs alongside a batch.
type Server struct {
	srv *http.Server
}

// New creates a Server on port.
func New(port string, router *mux.Router) *Server {
	return &Server{srv: &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Start serves in the background. Listen errors are logged; the batch
// goes on without the server.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server error: %v", err)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests until ctx is
// done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
