// Package rest exposes the workflow engine over a thin HTTP surface.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fleetops/dispatchflow/flow"
	"github.com/fleetops/dispatchflow/logger"
)

// Pinger is the optional health probe of the storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the session endpoints, graph introspection, health and
// metrics.
type Server struct {
	http.Server
	Port     int
	executor *flow.Executor
	registry *prometheus.Registry
	pinger   Pinger // may be nil
}

// NewServer builds the router. registry may be nil to skip /metrics;
// pinger may be nil for backends without a health probe.
func NewServer(httpPort int, executor *flow.Executor, registry *prometheus.Registry, pinger Pinger) *Server {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		Port:     httpPort,
		executor: executor,
		registry: registry,
		pinger:   pinger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/sessions/{id}/messages", s.HandleAdvance).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/approval", s.HandleResume).Methods(http.MethodPost)
	router.HandleFunc("/graph", s.HandleGraph).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)
	if registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	router.Use(loggingMiddleware)
	s.Handler = router
	return s
}

// Start blocks serving requests until Stop or a listener error.
func (s *Server) Start() error {
	logger.Info("starting http server", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Duration("duration", time.Since(start)))
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string, result *flow.Result) {
	body := map[string]any{"error": message}
	if result != nil && result.SessionID != "" {
		body["result"] = result
	}
	respondWithJSON(w, code, body)
}
