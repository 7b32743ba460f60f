// Package metrics exposes the Prometheus metrics of the gallery.
// All metrics are defined in their respective packages (pagination, client,
// ratelimit) and registered via promauto on the default registry; this package
// serves them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/pixabay-gallery/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Gatherer collects every metric registered through promauto.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Server serves /metrics and /health on a dedicated listener.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger zerolog.Logger
	done   chan error
}

// NewServer binds addr. Use ":0" for an ephemeral port.
func NewServer(addr string) (*Server, error) {
	if addr == "" {
		return nil, errors.New("metrics address is required")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logging.NewLogger("metrics"),
		done:   make(chan error, 1),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	s.logger.Info().Str("addr", s.Addr()).Msg("Metrics server started")
	go func() {
		err := s.srv.Serve(s.ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("Metrics server failed")
		}
		s.done <- err
	}()
}

// Shutdown stops the server and waits for the serve loop to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	err := <-s.done
	s.logger.Info().Msg("Metrics server stopped")
	return err
}

// Metrics Documentation
//
// Pagination Metrics (pkg/pagination):
//   - gallery_page_fetches_total{op, result} (Counter): Completed fetches (items, empty, error, stale)
//   - gallery_page_fetch_duration_seconds{op} (Histogram): Fetch latency
//   - gallery_loads_skipped_total{reason} (Counter): Loads refused by the guard
//   - gallery_stale_responses_total (Counter): Responses for replaced sessions
//   - gallery_session_starts_total (Counter): Searches started
//
// Request Metrics (pkg/client):
//   - pixabay_requests_total{status} (Counter): Requests by HTTP status
//   - pixabay_request_duration_seconds (Histogram): Request duration
//   - pixabay_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//   - pixabay_retries_total{error_class} (Counter): Retry attempts when retries are enabled
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pixabay_ratelimit_remaining (Gauge): Requests remaining in the current window
//   - pixabay_ratelimit_blocks_total (Counter): Requests blocked by an exhausted window
//   - pixabay_ratelimit_waits_total (Counter): Requests delayed by local pacing
//
// Example Prometheus Queries:
//
//   # Share of loads refused because a fetch was already in flight
//   rate(gallery_loads_skipped_total{reason="loading"}[5m])
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(gallery_page_fetch_duration_seconds_bucket[5m]))
//
//   # Quota headroom
//   pixabay_ratelimit_remaining < 10
