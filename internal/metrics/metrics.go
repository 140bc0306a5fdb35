package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tool call metrics
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timesheet_mcp_tool_calls_total",
			Help: "Total tool calls dispatched, by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timesheet_mcp_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds, including remote round trips",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// Remote service metrics
	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timesheet_mcp_remote_requests_total",
			Help: "Requests sent to the timesheet service, by operation and status",
		},
		[]string{"operation", "status"},
	)

	RemoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timesheet_mcp_remote_request_duration_seconds",
			Help:    "Remote request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Identity cache metrics
	IdentityLookupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timesheet_mcp_identity_lookups_total",
			Help: "Identity resolution requests actually sent (cache misses)",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		ToolCallsTotal,
		ToolCallDuration,
		RemoteRequestsTotal,
		RemoteRequestDuration,
		IdentityLookupsTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
