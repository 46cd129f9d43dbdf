package metrics

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// InstanceHealth is the /healthz view of one engine instance.
type InstanceHealth struct {
	Strategy  string `json:"strategy"`
	Symbol    string `json:"symbol"`
	Phase     string `json:"phase"`
	Session   string `json:"session"`
	Connected bool   `json:"connected"`
}

// HealthFunc reports every live instance by name.
type HealthFunc func() map[string]InstanceHealth

// Server serves /metrics and /healthz.
type Server struct {
	metrics    *Metrics
	health     HealthFunc
	log        *logger.Logger
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(m *Metrics, health HealthFunc, log *logger.Logger) *Server {
	//nolint:exhaustruct // listener is set by Start
	return &Server{
		metrics: m,
		health:  health,
		log:     log,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet) //nolint:exhaustruct
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/healthz/{instance}", s.handleInstanceHealth).Methods(http.MethodGet)

	return router
}

// Start listens on address and serves in the background. ":0" picks a free port.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeTelemetryFailed, err, "listen on %s", address)
	}

	s.listener = listener

	//nolint:exhaustruct
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("Metrics server stopped", zap.Error(err))
		}
	}()

	s.log.Info("Serving metrics", zap.String("address", listener.Addr().String()))

	return nil
}

// Addr is the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	instances := s.snapshot()

	status := http.StatusOK
	for _, in := range instances {
		if !in.Connected {
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, instances)
}

func (s *Server) handleInstanceHealth(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["instance"]

	in, ok := s.snapshot()[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown instance " + name})

		return
	}

	status := http.StatusOK
	if !in.Connected {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, in)
}

func (s *Server) snapshot() map[string]InstanceHealth {
	if s.health == nil {
		return map[string]InstanceHealth{}
	}

	return s.health()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
