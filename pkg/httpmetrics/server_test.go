package httpmetrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/go-cells/pkg/health"
	"github.com/opd-ai/go-cells/pkg/logger"
	"github.com/opd-ai/go-cells/pkg/metrics"
)

type mockMetricsProvider struct {
	snapshot *metrics.Snapshot
}

func (m *mockMetricsProvider) Snapshot() *metrics.Snapshot {
	if m.snapshot == nil {
		return &metrics.Snapshot{
			RoutedMessages:       100,
			RoutedForwards:       40,
			RoutedLocal:          60,
			RoutingInconsistency: 1,
			CallsStarted:         50,
			CallsTimedOut:        2,
			CallsFailed:          3,
			CallLatencyAvg:       300 * time.Millisecond,
			CallLatencyP95:       800 * time.Millisecond,
			PendingCalls:         3,
			BroadcastsOriginated: 20,
			BroadcastsForwarded:  40,
			BroadcastsDropped:    1,
			PlacementAttempts:    10,
			PlacementLocal:       6,
			PlacementForward:     4,
			PlacementFailures:    0,
			TopologyRefreshes:    12,
			TopologyFailures:     0,
			KnownCells:           5,
			UptimeSeconds:        3600,
		}
	}
	return m.snapshot
}

type mockHealthProvider struct {
	health health.OverallHealth
}

func (m *mockHealthProvider) Check(ctx context.Context) health.OverallHealth {
	if m.health.Status == "" {
		return health.OverallHealth{
			Status:    health.StatusHealthy,
			Timestamp: time.Now(),
			Uptime:    time.Hour,
			Components: map[string]health.ComponentHealth{
				"router": {
					Name:        "router",
					Status:      health.StatusHealthy,
					Message:     "router functioning normally",
					LastChecked: time.Now(),
				},
			},
		}
	}
	return m.health
}

func TestNewServer(t *testing.T) {
	log := logger.NewDefault()
	metricsProvider := &mockMetricsProvider{}
	healthProvider := &mockHealthProvider{}

	server := NewServer("127.0.0.1:0", metricsProvider, healthProvider, log)
	if server == nil {
		t.Fatal("NewServer returned nil")
	}
	if server.address == "" {
		t.Error("Server address not set")
	}
	if server.metricsProvider == nil {
		t.Error("Metrics provider not set")
	}
	if server.healthProvider == nil {
		t.Error("Health provider not set")
	}
}

func TestServerStartStop(t *testing.T) {
	log := logger.NewDefault()
	server := NewServer("127.0.0.1:0", &mockMetricsProvider{}, &mockHealthProvider{}, log)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	addr := server.GetAddress()
	if addr == "" {
		t.Error("Server address is empty after start")
	}

	if err := server.Stop(); err != nil {
		t.Errorf("Failed to stop server: %v", err)
	}
}

func TestPrometheusMetricsEndpoint(t *testing.T) {
	log := logger.NewDefault()
	server := NewServer("127.0.0.1:0", &mockMetricsProvider{}, &mockHealthProvider{}, log)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	url := "http://" + server.GetAddress() + "/metrics"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") {
		t.Errorf("Expected Content-Type text/plain, got %s", contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	bodyStr := string(body)

	expectedMetrics := []string{
		"cell_routed_messages_total",
		"cell_routed_forwards_total",
		"cell_pending_calls",
		"cell_broadcasts_originated_total",
		"cell_placement_attempts_total",
		"cell_uptime_seconds",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("Expected metric %s not found in response", metric)
		}
	}

	if !strings.Contains(bodyStr, "# HELP") {
		t.Error("Expected HELP comments in Prometheus format")
	}
	if !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected TYPE comments in Prometheus format")
	}
}

func TestJSONMetricsEndpoint(t *testing.T) {
	log := logger.NewDefault()
	server := NewServer("127.0.0.1:0", &mockMetricsProvider{}, &mockHealthProvider{}, log)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	url := "http://" + server.GetAddress() + "/metrics/json"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET /metrics/json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var snapshot metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}

	if snapshot.RoutedMessages != 100 {
		t.Errorf("Expected RoutedMessages=100, got %d", snapshot.RoutedMessages)
	}
	if snapshot.KnownCells != 5 {
		t.Errorf("Expected KnownCells=5, got %d", snapshot.KnownCells)
	}
}

func TestHealthEndpoint(t *testing.T) {
	log := logger.NewDefault()
	server := NewServer("127.0.0.1:0", &mockMetricsProvider{}, &mockHealthProvider{}, log)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	url := "http://" + server.GetAddress() + "/health"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for healthy, got %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var healthStatus health.OverallHealth
	if err := json.NewDecoder(resp.Body).Decode(&healthStatus); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}

	if healthStatus.Status != health.StatusHealthy {
		t.Errorf("Expected status healthy, got %s", healthStatus.Status)
	}
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	log := logger.NewDefault()
	healthProvider := &mockHealthProvider{
		health: health.OverallHealth{
			Status:    health.StatusUnhealthy,
			Timestamp: time.Now(),
			Components: map[string]health.ComponentHealth{
				"router": {
					Name:    "router",
					Status:  health.StatusUnhealthy,
					Message: "pending response table at capacity",
				},
			},
		},
	}

	server := NewServer("127.0.0.1:0", &mockMetricsProvider{}, healthProvider, log)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	url := "http://" + server.GetAddress() + "/health"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 for unhealthy, got %d", resp.StatusCode)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	log := logger.NewDefault()
	server := NewServer("127.0.0.1:0", &mockMetricsProvider{}, &mockHealthProvider{}, log)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	url := "http://" + server.GetAddress() + "/debug/metrics"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET /debug/metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") {
		t.Errorf("Expected Content-Type text/html, got %s", contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	bodyStr := string(body)

	if !strings.Contains(bodyStr, "<!DOCTYPE html>") {
		t.Error("Expected HTML document")
	}
	if !strings.Contains(bodyStr, "go-cells Metrics Dashboard") {
		t.Error("Expected dashboard title")
	}
	if !strings.Contains(bodyStr, "Router Core") {
		t.Error("Expected router core metrics section")
	}
}

func TestIndexEndpoint(t *testing.T) {
	log := logger.NewDefault()
	server := NewServer("127.0.0.1:0", &mockMetricsProvider{}, &mockHealthProvider{}, log)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	url := "http://" + server.GetAddress() + "/"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	bodyStr := string(body)

	expectedLinks := []string{
		"/metrics",
		"/metrics/json",
		"/health",
		"/debug/metrics",
	}

	for _, link := range expectedLinks {
		if !strings.Contains(bodyStr, link) {
			t.Errorf("Expected link to %s not found", link)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	log := logger.NewDefault()
	server := NewServer("127.0.0.1:0", &mockMetricsProvider{}, &mockHealthProvider{}, log)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	url := "http://" + server.GetAddress() + "/metrics"
	resp, err := http.Post(url, "text/plain", strings.NewReader("test"))
	if err != nil {
		t.Fatalf("Failed to POST /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestNotFound(t *testing.T) {
	log := logger.NewDefault()
	server := NewServer("127.0.0.1:0", &mockMetricsProvider{}, &mockHealthProvider{}, log)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	url := "http://" + server.GetAddress() + "/nonexistent"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}
