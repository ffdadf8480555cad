// Package httpmetrics provides HTTP-based metrics exposition for monitoring
// a cell router: a JSON endpoint, a Prometheus text-exposition endpoint,
// a health endpoint, and a simple HTML dashboard.
package httpmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/opd-ai/go-cells/pkg/health"
	"github.com/opd-ai/go-cells/pkg/logger"
	"github.com/opd-ai/go-cells/pkg/metrics"
)

// MetricsProvider interface for getting metrics.
type MetricsProvider interface {
	Snapshot() *metrics.Snapshot
}

// HealthProvider interface for getting health status.
type HealthProvider interface {
	Check(ctx context.Context) health.OverallHealth
}

// Server provides HTTP-based metrics exposition.
type Server struct {
	address         string
	metricsProvider MetricsProvider
	healthProvider  HealthProvider
	logger          *logger.Logger
	server          *http.Server
	listener        net.Listener
	mux             *http.ServeMux

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new HTTP metrics server.
func NewServer(address string, metricsProvider MetricsProvider, healthProvider HealthProvider, log *logger.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	mux := http.NewServeMux()

	if log == nil {
		log = logger.NewDefault()
	}

	s := &Server{
		address:         address,
		metricsProvider: metricsProvider,
		healthProvider:  healthProvider,
		logger:          log.Component("httpmetrics"),
		mux:             mux,
		ctx:             ctx,
		cancel:          cancel,
	}

	mux.HandleFunc("/metrics", s.handlePrometheusMetrics)
	mux.HandleFunc("/metrics/json", s.handleJSONMetrics)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/debug/metrics", s.handleDashboard)
	mux.HandleFunc("/", s.handleIndex)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP metrics server.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	s.logger.Info("HTTP metrics server listening", "address", actualAddr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP metrics server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP metrics server")

	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP server shutdown error", "error", err)
		return err
	}

	s.wg.Wait()

	s.logger.Info("HTTP metrics server stopped")
	return nil
}

// GetAddress returns the actual listening address.
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}

// handlePrometheusMetrics serves metrics in Prometheus text format.
func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.metricsProvider.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP cell_routed_messages_total Total number of messages routed through this cell\n")
	fmt.Fprintf(w, "# TYPE cell_routed_messages_total counter\n")
	fmt.Fprintf(w, "cell_routed_messages_total %d\n", snapshot.RoutedMessages)

	fmt.Fprintf(w, "# HELP cell_routed_forwards_total Total number of messages forwarded to a neighbor\n")
	fmt.Fprintf(w, "# TYPE cell_routed_forwards_total counter\n")
	fmt.Fprintf(w, "cell_routed_forwards_total %d\n", snapshot.RoutedForwards)

	fmt.Fprintf(w, "# HELP cell_routed_local_total Total number of messages processed locally\n")
	fmt.Fprintf(w, "# TYPE cell_routed_local_total counter\n")
	fmt.Fprintf(w, "cell_routed_local_total %d\n", snapshot.RoutedLocal)

	fmt.Fprintf(w, "# HELP cell_routing_inconsistency_total Total number of routing inconsistency errors\n")
	fmt.Fprintf(w, "# TYPE cell_routing_inconsistency_total counter\n")
	fmt.Fprintf(w, "cell_routing_inconsistency_total %d\n", snapshot.RoutingInconsistency)

	fmt.Fprintf(w, "# HELP cell_calls_timed_out_total Total number of calls that timed out waiting for a response\n")
	fmt.Fprintf(w, "# TYPE cell_calls_timed_out_total counter\n")
	fmt.Fprintf(w, "cell_calls_timed_out_total %d\n", snapshot.CallsTimedOut)

	fmt.Fprintf(w, "# HELP cell_calls_failed_total Total number of calls that completed with an error\n")
	fmt.Fprintf(w, "# TYPE cell_calls_failed_total counter\n")
	fmt.Fprintf(w, "cell_calls_failed_total %d\n", snapshot.CallsFailed)

	fmt.Fprintf(w, "# HELP cell_call_latency_seconds_avg Average call round-trip latency in seconds\n")
	fmt.Fprintf(w, "# TYPE cell_call_latency_seconds_avg gauge\n")
	fmt.Fprintf(w, "cell_call_latency_seconds_avg %.3f\n", snapshot.CallLatencyAvg.Seconds())

	fmt.Fprintf(w, "# HELP cell_call_latency_seconds_p95 95th percentile call round-trip latency in seconds\n")
	fmt.Fprintf(w, "# TYPE cell_call_latency_seconds_p95 gauge\n")
	fmt.Fprintf(w, "cell_call_latency_seconds_p95 %.3f\n", snapshot.CallLatencyP95.Seconds())

	fmt.Fprintf(w, "# HELP cell_pending_calls Current number of calls awaiting a response\n")
	fmt.Fprintf(w, "# TYPE cell_pending_calls gauge\n")
	fmt.Fprintf(w, "cell_pending_calls %d\n", snapshot.PendingCalls)

	fmt.Fprintf(w, "# HELP cell_broadcasts_originated_total Total number of broadcasts originated by this cell\n")
	fmt.Fprintf(w, "# TYPE cell_broadcasts_originated_total counter\n")
	fmt.Fprintf(w, "cell_broadcasts_originated_total %d\n", snapshot.BroadcastsOriginated)

	fmt.Fprintf(w, "# HELP cell_broadcasts_forwarded_total Total number of broadcasts fanned out to neighbors\n")
	fmt.Fprintf(w, "# TYPE cell_broadcasts_forwarded_total counter\n")
	fmt.Fprintf(w, "cell_broadcasts_forwarded_total %d\n", snapshot.BroadcastsForwarded)

	fmt.Fprintf(w, "# HELP cell_broadcasts_dropped_total Total number of broadcasts dropped for exceeding the hop count\n")
	fmt.Fprintf(w, "# TYPE cell_broadcasts_dropped_total counter\n")
	fmt.Fprintf(w, "cell_broadcasts_dropped_total %d\n", snapshot.BroadcastsDropped)

	fmt.Fprintf(w, "# HELP cell_placement_attempts_total Total number of instance placement attempts\n")
	fmt.Fprintf(w, "# TYPE cell_placement_attempts_total counter\n")
	fmt.Fprintf(w, "cell_placement_attempts_total %d\n", snapshot.PlacementAttempts)

	fmt.Fprintf(w, "# HELP cell_placement_failures_total Total number of placement attempts that exhausted all candidates\n")
	fmt.Fprintf(w, "# TYPE cell_placement_failures_total counter\n")
	fmt.Fprintf(w, "cell_placement_failures_total %d\n", snapshot.PlacementFailures)

	fmt.Fprintf(w, "# HELP cell_topology_refreshes_total Total number of topology cache refresh attempts\n")
	fmt.Fprintf(w, "# TYPE cell_topology_refreshes_total counter\n")
	fmt.Fprintf(w, "cell_topology_refreshes_total %d\n", snapshot.TopologyRefreshes)

	fmt.Fprintf(w, "# HELP cell_topology_failures_total Total number of failed topology cache refreshes\n")
	fmt.Fprintf(w, "# TYPE cell_topology_failures_total counter\n")
	fmt.Fprintf(w, "cell_topology_failures_total %d\n", snapshot.TopologyFailures)

	fmt.Fprintf(w, "# HELP cell_known_cells Current number of cells known to the topology cache\n")
	fmt.Fprintf(w, "# TYPE cell_known_cells gauge\n")
	fmt.Fprintf(w, "cell_known_cells %d\n", snapshot.KnownCells)

	fmt.Fprintf(w, "# HELP cell_uptime_seconds Cell process uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE cell_uptime_seconds gauge\n")
	fmt.Fprintf(w, "cell_uptime_seconds %d\n", snapshot.UptimeSeconds)
}

// handleJSONMetrics serves metrics in JSON format.
func (s *Server) handleJSONMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.metricsProvider.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot); err != nil {
		s.logger.Error("Failed to encode metrics", "error", err)
	}
}

// handleHealth serves health check information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthStatus := s.healthProvider.Check(ctx)

	statusCode := http.StatusOK
	if healthStatus.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(healthStatus); err != nil {
		s.logger.Error("Failed to encode health status", "error", err)
	}
}

// handleDashboard serves a simple HTML dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.metricsProvider.Snapshot()

	tmpl := template.Must(template.New("dashboard").Parse(dashboardTemplate))

	data := struct {
		Metrics   *metrics.Snapshot
		Timestamp time.Time
	}{
		Metrics:   snapshot,
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("Failed to render dashboard", "error", err)
	}
}

// handleIndex serves the index page with links to available endpoints.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>go-cells Metrics</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        h1 { color: #333; }
        ul { list-style-type: none; padding: 0; }
        li { margin: 10px 0; }
        a { color: #2e7d32; text-decoration: none; }
        a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1>go-cells Metrics Server</h1>
    <p>Available endpoints:</p>
    <ul>
        <li><a href="/metrics">/metrics</a> - Prometheus format metrics</li>
        <li><a href="/metrics/json">/metrics/json</a> - JSON format metrics</li>
        <li><a href="/health">/health</a> - Health check status</li>
        <li><a href="/debug/metrics">/debug/metrics</a> - Real-time dashboard</li>
    </ul>
</body>
</html>`)
}

const dashboardTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>go-cells Metrics Dashboard</title>
    <meta http-equiv="refresh" content="5">
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            margin: 0;
            padding: 20px;
            background: #f5f5f5;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
        }
        h1 {
            color: #333;
            border-bottom: 3px solid #2e7d32;
            padding-bottom: 10px;
        }
        .timestamp {
            color: #666;
            font-size: 0.9em;
            margin-bottom: 20px;
        }
        .metrics-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(300px, 1fr));
            gap: 20px;
            margin-bottom: 20px;
        }
        .metric-card {
            background: white;
            border-radius: 8px;
            padding: 20px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        .metric-card h2 {
            margin-top: 0;
            color: #555;
            font-size: 1.2em;
            border-bottom: 2px solid #eee;
            padding-bottom: 10px;
        }
        .metric-row {
            display: flex;
            justify-content: space-between;
            padding: 8px 0;
            border-bottom: 1px solid #f0f0f0;
        }
        .metric-row:last-child {
            border-bottom: none;
        }
        .metric-label {
            color: #666;
            font-weight: 500;
        }
        .metric-value {
            color: #333;
            font-weight: bold;
        }
        .success { color: #28a745; }
        .warning { color: #ffc107; }
        .danger { color: #dc3545; }
    </style>
</head>
<body>
    <div class="container">
        <h1>go-cells Metrics Dashboard</h1>
        <div class="timestamp">Last updated: {{.Timestamp.Format "2006-01-02 15:04:05 MST"}} (auto-refresh every 5s)</div>

        <div class="metrics-grid">
            <div class="metric-card">
                <h2>Router Core</h2>
                <div class="metric-row">
                    <span class="metric-label">Routed Messages:</span>
                    <span class="metric-value">{{.Metrics.RoutedMessages}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Forwarded:</span>
                    <span class="metric-value">{{.Metrics.RoutedForwards}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Processed Locally:</span>
                    <span class="metric-value">{{.Metrics.RoutedLocal}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Routing Inconsistencies:</span>
                    <span class="metric-value danger">{{.Metrics.RoutingInconsistency}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Pending Calls:</span>
                    <span class="metric-value">{{.Metrics.PendingCalls}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Timed Out:</span>
                    <span class="metric-value warning">{{.Metrics.CallsTimedOut}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Avg Call Latency:</span>
                    <span class="metric-value">{{printf "%.2fs" .Metrics.CallLatencyAvg.Seconds}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">P95 Call Latency:</span>
                    <span class="metric-value">{{printf "%.2fs" .Metrics.CallLatencyP95.Seconds}}</span>
                </div>
            </div>

            <div class="metric-card">
                <h2>Broadcast Engine</h2>
                <div class="metric-row">
                    <span class="metric-label">Originated:</span>
                    <span class="metric-value">{{.Metrics.BroadcastsOriginated}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Forwarded:</span>
                    <span class="metric-value">{{.Metrics.BroadcastsForwarded}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Dropped (hop cap):</span>
                    <span class="metric-value danger">{{.Metrics.BroadcastsDropped}}</span>
                </div>
            </div>

            <div class="metric-card">
                <h2>Placement Forwarder</h2>
                <div class="metric-row">
                    <span class="metric-label">Attempts:</span>
                    <span class="metric-value">{{.Metrics.PlacementAttempts}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Placed Locally:</span>
                    <span class="metric-value">{{.Metrics.PlacementLocal}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Forwarded to Child:</span>
                    <span class="metric-value">{{.Metrics.PlacementForward}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Failures:</span>
                    <span class="metric-value danger">{{.Metrics.PlacementFailures}}</span>
                </div>
            </div>

            <div class="metric-card">
                <h2>Topology Cache</h2>
                <div class="metric-row">
                    <span class="metric-label">Known Cells:</span>
                    <span class="metric-value">{{.Metrics.KnownCells}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Refreshes:</span>
                    <span class="metric-value">{{.Metrics.TopologyRefreshes}}</span>
                </div>
                <div class="metric-row">
                    <span class="metric-label">Refresh Failures:</span>
                    <span class="metric-value danger">{{.Metrics.TopologyFailures}}</span>
                </div>
            </div>

            <div class="metric-card">
                <h2>System</h2>
                <div class="metric-row">
                    <span class="metric-label">Uptime:</span>
                    <span class="metric-value">{{.Metrics.UptimeSeconds}}s</span>
                </div>
            </div>
        </div>
    </div>
</body>
</html>`
