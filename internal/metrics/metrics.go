// Package metrics counts hit pipeline outcomes for Prometheus scraping.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leanstats/internal/hits"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Second
)

// Recorder holds the pipeline collectors on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	hits     *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	r := &Recorder{
		registry: registry,
		hits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leanstats_hits_total",
				Help: "Hits processed by the collector, by outcome",
			},
			[]string{"outcome"},
		),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "leanstats_hit_duration_seconds",
			Help:    "Time spent processing a hit",
			Buckets: prometheus.DefBuckets,
		}),
	}

	// Expose every outcome from the start so rates work before the first hit
	for _, outcome := range hits.Outcomes() {
		r.hits.WithLabelValues(string(outcome))
	}

	return r
}

// Observe implements hits.Observer.
func (r *Recorder) Observe(outcome hits.Outcome, elapsed time.Duration) {
	r.hits.WithLabelValues(string(outcome)).Inc()
	r.duration.Observe(elapsed.Seconds())
}

// HitsCounter exposes the outcome counter for assertions.
func (r *Recorder) HitsCounter() *prometheus.CounterVec {
	return r.hits
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics on its own port and runs as a background worker.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

func NewServer(port int, recorder *Recorder, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("Starting metrics server", slog.String("addr", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server stopped unexpectedly", slog.Any("error", err))
		}
	}()
	return nil
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("Failed to close metrics server", slog.Any("error", err))
	}
}
