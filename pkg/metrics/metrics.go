// Package metrics provides a hand-rolled operational metrics registry for
// a cell router: atomic counters, gauges, and a bounded-window duration
// histogram, snapshotted together for the HTTP metrics surface.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects operational counters for a single cell's Router Core,
// Broadcast Engine, Placement Forwarder, and Topology Cache.
type Metrics struct {
	// Router Core
	RoutedMessages       *Counter
	RoutedForwards       *Counter
	RoutedLocal          *Counter
	RoutingInconsistency *Counter
	CallsStarted         *Counter
	CallsTimedOut        *Counter
	CallsFailed          *Counter
	CallLatency          *Histogram
	PendingCalls         *Gauge

	// Broadcast Engine
	BroadcastsOriginated *Counter
	BroadcastsForwarded  *Counter
	BroadcastsDropped    *Counter // hop-count exceeded

	// Placement Forwarder
	PlacementAttempts *Counter
	PlacementLocal    *Counter
	PlacementForward  *Counter
	PlacementFailures *Counter

	// Topology Cache
	TopologyRefreshes *Counter
	TopologyFailures  *Counter
	KnownCells        *Gauge

	// System
	Uptime      *Gauge
	startTime   time.Time
	startTimeMu sync.RWMutex
}

// New creates a new metrics registry.
func New() *Metrics {
	return &Metrics{
		RoutedMessages:       NewCounter(),
		RoutedForwards:       NewCounter(),
		RoutedLocal:          NewCounter(),
		RoutingInconsistency: NewCounter(),
		CallsStarted:         NewCounter(),
		CallsTimedOut:        NewCounter(),
		CallsFailed:          NewCounter(),
		CallLatency:          NewHistogram(),
		PendingCalls:         NewGauge(),

		BroadcastsOriginated: NewCounter(),
		BroadcastsForwarded:  NewCounter(),
		BroadcastsDropped:    NewCounter(),

		PlacementAttempts: NewCounter(),
		PlacementLocal:    NewCounter(),
		PlacementForward:  NewCounter(),
		PlacementFailures: NewCounter(),

		TopologyRefreshes: NewCounter(),
		TopologyFailures:  NewCounter(),
		KnownCells:        NewGauge(),

		Uptime:    NewGauge(),
		startTime: time.Now(),
	}
}

// RecordCall records a completed Call, successful or not, along with how
// long it took the response to arrive (or the timeout to fire).
func (m *Metrics) RecordCall(timedOut, failed bool, duration time.Duration) {
	if timedOut {
		m.CallsTimedOut.Inc()
	} else if failed {
		m.CallsFailed.Inc()
	}
	m.CallLatency.Observe(duration)
}

// RecordTopologyRefresh records a Topology Cache refresh outcome.
func (m *Metrics) RecordTopologyRefresh(err error, cellCount int) {
	m.TopologyRefreshes.Inc()
	if err != nil {
		m.TopologyFailures.Inc()
		return
	}
	m.KnownCells.Set(int64(cellCount))
}

// UpdateUptime refreshes the Uptime gauge from the registry's start time.
func (m *Metrics) UpdateUptime() {
	m.startTimeMu.RLock()
	defer m.startTimeMu.RUnlock()
	m.Uptime.Set(int64(time.Since(m.startTime).Seconds()))
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() *Snapshot {
	m.UpdateUptime()
	return &Snapshot{
		RoutedMessages:          m.RoutedMessages.Value(),
		RoutedForwards:          m.RoutedForwards.Value(),
		RoutedLocal:             m.RoutedLocal.Value(),
		RoutingInconsistency:    m.RoutingInconsistency.Value(),
		CallsStarted:            m.CallsStarted.Value(),
		CallsTimedOut:           m.CallsTimedOut.Value(),
		CallsFailed:             m.CallsFailed.Value(),
		CallLatencyAvg:          m.CallLatency.Mean(),
		CallLatencyP95:          m.CallLatency.Percentile(0.95),
		PendingCalls:            m.PendingCalls.Value(),
		BroadcastsOriginated:    m.BroadcastsOriginated.Value(),
		BroadcastsForwarded:     m.BroadcastsForwarded.Value(),
		BroadcastsDropped:       m.BroadcastsDropped.Value(),
		PlacementAttempts:       m.PlacementAttempts.Value(),
		PlacementLocal:          m.PlacementLocal.Value(),
		PlacementForward:        m.PlacementForward.Value(),
		PlacementFailures:       m.PlacementFailures.Value(),
		TopologyRefreshes:       m.TopologyRefreshes.Value(),
		TopologyFailures:        m.TopologyFailures.Value(),
		KnownCells:              m.KnownCells.Value(),
		UptimeSeconds:           m.Uptime.Value(),
	}
}

// Snapshot represents a point-in-time snapshot of metrics.
type Snapshot struct {
	RoutedMessages       int64
	RoutedForwards       int64
	RoutedLocal          int64
	RoutingInconsistency int64
	CallsStarted         int64
	CallsTimedOut        int64
	CallsFailed          int64
	CallLatencyAvg       time.Duration
	CallLatencyP95       time.Duration
	PendingCalls         int64

	BroadcastsOriginated int64
	BroadcastsForwarded  int64
	BroadcastsDropped    int64

	PlacementAttempts int64
	PlacementLocal    int64
	PlacementForward  int64
	PlacementFailures int64

	TopologyRefreshes int64
	TopologyFailures  int64
	KnownCells        int64

	UptimeSeconds int64
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value int64
}

// NewCounter creates a new counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds n to the counter.
func (c *Counter) Add(n int64) {
	atomic.AddInt64(&c.value, n)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Gauge is a value that can go up or down.
type Gauge struct {
	value int64
}

// NewGauge creates a new gauge.
func NewGauge() *Gauge {
	return &Gauge{}
}

// Set sets the gauge to a specific value.
func (g *Gauge) Set(value int64) {
	atomic.StoreInt64(&g.value, value)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	atomic.AddInt64(&g.value, 1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	atomic.AddInt64(&g.value, -1)
}

// Add adds n to the gauge.
func (g *Gauge) Add(n int64) {
	atomic.AddInt64(&g.value, n)
}

// Value returns the current gauge value.
func (g *Gauge) Value() int64 {
	return atomic.LoadInt64(&g.value)
}

// Histogram tracks the distribution of durations over a bounded window.
type Histogram struct {
	observations []time.Duration
	mu           sync.RWMutex
}

// NewHistogram creates a new histogram.
func NewHistogram() *Histogram {
	return &Histogram{
		observations: make([]time.Duration, 0, 1000),
	}
}

// Observe adds a new observation to the histogram.
func (h *Histogram) Observe(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.observations) >= 1000 {
		h.observations = h.observations[1:]
	}
	h.observations = append(h.observations, d)
}

// Mean returns the mean of all observations.
func (h *Histogram) Mean() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.observations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range h.observations {
		sum += d
	}
	return sum / time.Duration(len(h.observations))
}

// Percentile returns the nth percentile (0.0 to 1.0).
func (h *Histogram) Percentile(p float64) time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.observations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(h.observations))
	copy(sorted, h.observations)

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i] > sorted[j] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}

// Count returns the number of observations.
func (h *Histogram) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observations)
}
