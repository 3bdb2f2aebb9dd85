package perf

import (
	"sync"
	"time"
)

// Metrics accumulates engine timing and cache counters. All methods are
// safe for concurrent use.
type Metrics struct {
	mu          sync.Mutex
	rollTime    time.Duration
	evalTime    time.Duration
	cacheHits   int64
	cacheMisses int64
	tableLoads  int64
}

// MetricsSnapshot is a read-only copy of the counters, serializable for
// diagnostics export.
type MetricsSnapshot struct {
	TotalRollTime time.Duration `json:"totalRollTime"`
	TotalEvalTime time.Duration `json:"totalEvalTime"`
	CacheHits     int64         `json:"cacheHits"`
	CacheMisses   int64         `json:"cacheMisses"`
	TableLoads    int64         `json:"tableLoads"`
}

// NewMetrics creates a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// AddRollTime accumulates d into the cumulative roll time.
func (m *Metrics) AddRollTime(d time.Duration) {
	m.mu.Lock()
	m.rollTime += d
	m.mu.Unlock()
}

// AddEvalTime accumulates d into the cumulative expression time.
func (m *Metrics) AddEvalTime(d time.Duration) {
	m.mu.Lock()
	m.evalTime += d
	m.mu.Unlock()
}

// CacheHit increments the hit counter.
func (m *Metrics) CacheHit() {
	m.mu.Lock()
	m.cacheHits++
	m.mu.Unlock()
}

// CacheMiss increments the miss counter.
func (m *Metrics) CacheMiss() {
	m.mu.Lock()
	m.cacheMisses++
	m.mu.Unlock()
}

// TableLoaded increments the table-load counter.
func (m *Metrics) TableLoaded() {
	m.mu.Lock()
	m.tableLoads++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		TotalRollTime: m.rollTime,
		TotalEvalTime: m.evalTime,
		CacheHits:     m.cacheHits,
		CacheMisses:   m.cacheMisses,
		TableLoads:    m.tableLoads,
	}
}
