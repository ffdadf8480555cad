package health

import (
	"context"
	"testing"
	"time"
)

// mockChecker implements Checker for testing
type mockChecker struct {
	name   string
	status Status
	delay  time.Duration
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) ComponentHealth {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return ComponentHealth{
		Name:        m.name,
		Status:      m.status,
		Message:     "Mock check",
		LastChecked: time.Now(),
	}
}

func TestNewMonitor(t *testing.T) {
	monitor := NewMonitor()
	if monitor == nil {
		t.Fatal("NewMonitor returned nil")
	}
	if monitor.checkers == nil {
		t.Error("checkers map not initialized")
	}
	if monitor.lastChecks == nil {
		t.Error("lastChecks map not initialized")
	}
}

func TestRegisterChecker(t *testing.T) {
	monitor := NewMonitor()
	checker := &mockChecker{name: "test", status: StatusHealthy}

	monitor.RegisterChecker(checker)

	monitor.mu.RLock()
	defer monitor.mu.RUnlock()
	if _, exists := monitor.checkers["test"]; !exists {
		t.Error("Checker not registered")
	}
}

func TestUnregisterChecker(t *testing.T) {
	monitor := NewMonitor()
	checker := &mockChecker{name: "test", status: StatusHealthy}

	monitor.RegisterChecker(checker)
	monitor.UnregisterChecker("test")

	monitor.mu.RLock()
	defer monitor.mu.RUnlock()
	if _, exists := monitor.checkers["test"]; exists {
		t.Error("Checker not unregistered")
	}
}

func TestCheck(t *testing.T) {
	monitor := NewMonitor()
	monitor.RegisterChecker(&mockChecker{name: "component1", status: StatusHealthy})
	monitor.RegisterChecker(&mockChecker{name: "component2", status: StatusHealthy})

	ctx := context.Background()
	result := monitor.Check(ctx)

	if result.Status != StatusHealthy {
		t.Errorf("Expected overall status healthy, got %s", result.Status)
	}
	if len(result.Components) != 2 {
		t.Errorf("Expected 2 components, got %d", len(result.Components))
	}
}

func TestCheckOverallStatus(t *testing.T) {
	tests := []struct {
		name           string
		checkers       []mockChecker
		expectedStatus Status
	}{
		{
			name: "all healthy",
			checkers: []mockChecker{
				{name: "c1", status: StatusHealthy},
				{name: "c2", status: StatusHealthy},
			},
			expectedStatus: StatusHealthy,
		},
		{
			name: "one degraded",
			checkers: []mockChecker{
				{name: "c1", status: StatusHealthy},
				{name: "c2", status: StatusDegraded},
			},
			expectedStatus: StatusDegraded,
		},
		{
			name: "one unhealthy",
			checkers: []mockChecker{
				{name: "c1", status: StatusHealthy},
				{name: "c2", status: StatusUnhealthy},
			},
			expectedStatus: StatusUnhealthy,
		},
		{
			name: "degraded and unhealthy",
			checkers: []mockChecker{
				{name: "c1", status: StatusDegraded},
				{name: "c2", status: StatusUnhealthy},
			},
			expectedStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := NewMonitor()
			for i := range tt.checkers {
				monitor.RegisterChecker(&tt.checkers[i])
			}

			result := monitor.Check(context.Background())
			if result.Status != tt.expectedStatus {
				t.Errorf("Expected status %s, got %s", tt.expectedStatus, result.Status)
			}
		})
	}
}

func TestGetLastCheck(t *testing.T) {
	monitor := NewMonitor()
	monitor.RegisterChecker(&mockChecker{name: "test", status: StatusHealthy})

	// Perform initial check
	ctx := context.Background()
	monitor.Check(ctx)

	// Get last check
	result := monitor.GetLastCheck()
	if len(result.Components) != 1 {
		t.Errorf("Expected 1 component in last check, got %d", len(result.Components))
	}
	if result.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", result.Status)
	}
}

func TestRouterHealthChecker(t *testing.T) {
	tests := []struct {
		name           string
		stats          RouterStats
		expectedStatus Status
	}{
		{
			name: "healthy router",
			stats: RouterStats{
				PendingCalls:  5,
				MaxPending:    1000,
				OldestPending: 2 * time.Second,
			},
			expectedStatus: StatusHealthy,
		},
		{
			name: "degraded router - aging pending call",
			stats: RouterStats{
				PendingCalls:  5,
				MaxPending:    1000,
				OldestPending: 45 * time.Second,
			},
			expectedStatus: StatusDegraded,
		},
		{
			name: "unhealthy router - table full",
			stats: RouterStats{
				PendingCalls: 1000,
				MaxPending:   1000,
			},
			expectedStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewRouterHealthChecker(func() RouterStats {
				return tt.stats
			})

			result := checker.Check(context.Background())
			if result.Status != tt.expectedStatus {
				t.Errorf("Expected status %s, got %s", tt.expectedStatus, result.Status)
			}
			if result.Name != "router" {
				t.Errorf("Expected name 'router', got %s", result.Name)
			}
		})
	}
}

func TestTransportHealthChecker(t *testing.T) {
	tests := []struct {
		name           string
		stats          TransportStats
		expectedStatus Status
	}{
		{
			name:           "healthy transport",
			stats:          TransportStats{SendAttempts: 10, SendFailures: 0},
			expectedStatus: StatusHealthy,
		},
		{
			name:           "degraded transport",
			stats:          TransportStats{SendAttempts: 10, SendFailures: 2},
			expectedStatus: StatusDegraded,
		},
		{
			name:           "unhealthy transport",
			stats:          TransportStats{SendAttempts: 10, SendFailures: 9},
			expectedStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewTransportHealthChecker(func() TransportStats {
				return tt.stats
			})

			result := checker.Check(context.Background())
			if result.Status != tt.expectedStatus {
				t.Errorf("Expected status %s, got %s", tt.expectedStatus, result.Status)
			}
			if result.Name != "transport" {
				t.Errorf("Expected name 'transport', got %s", result.Name)
			}
		})
	}
}

func TestTopologyHealthChecker(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name           string
		stats          TopologyStats
		expectedStatus Status
	}{
		{
			name: "healthy topology",
			stats: TopologyStats{
				LastRefresh: now.Add(-10 * time.Second),
				RefreshAge:  10 * time.Second,
				CellCount:   12,
			},
			expectedStatus: StatusHealthy,
		},
		{
			name: "degraded topology - stale cache",
			stats: TopologyStats{
				LastRefresh: now.Add(-10 * time.Minute),
				RefreshAge:  10 * time.Minute,
				CellCount:   12,
			},
			expectedStatus: StatusDegraded,
		},
		{
			name: "unhealthy topology - refresh failing",
			stats: TopologyStats{
				LastRefresh:  now.Add(-2 * time.Minute),
				RefreshAge:   2 * time.Minute,
				CellCount:    12,
				RefreshError: context.DeadlineExceeded,
			},
			expectedStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewTopologyHealthChecker(func() TopologyStats {
				return tt.stats
			})

			result := checker.Check(context.Background())
			if result.Status != tt.expectedStatus {
				t.Errorf("Expected status %s, got %s", tt.expectedStatus, result.Status)
			}
			if result.Name != "topology" {
				t.Errorf("Expected name 'topology', got %s", result.Name)
			}
		})
	}
}

func TestCheckResponseTime(t *testing.T) {
	monitor := NewMonitor()
	// Add a checker with artificial delay
	monitor.RegisterChecker(&mockChecker{
		name:   "slow",
		status: StatusHealthy,
		delay:  50 * time.Millisecond,
	})

	result := monitor.Check(context.Background())
	slowHealth := result.Components["slow"]

	if slowHealth.ResponseTimeMs < 50 {
		t.Errorf("Expected response time >= 50ms, got %dms", slowHealth.ResponseTimeMs)
	}
}
