package metrics

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nitedsync/internal/cache"
	"nitedsync/internal/config"
	"nitedsync/internal/remote"
)

// Server exposes /metrics and /health.
type Server struct {
	Logger *slog.Logger
	Config *config.Config
	Cache  *cache.Store
	Remote *remote.NATS

	srv *http.Server
}

func (s *Server) Init(context.Context) error {
	s.Logger = s.Logger.With("component", "metrics.Server")

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Remote.HealthCheck(r.Context()); err != nil {
			s.Logger.Error("remote health check failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if err := s.Cache.HealthCheck(r.Context()); err != nil {
			s.Logger.Error("cache health check failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	s.srv = &http.Server{Addr: s.Config.MetricsAddr, Handler: mux}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.Logger.Info("metrics server listening", "addr", s.srv.Addr)
	go s.srv.Serve(ln) //nolint:errcheck

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
