package metrics

import (
	"database/sql"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Follow-up Dispatch Counters
// =============================================================================

// DispatchMetrics accumulates follow-up dispatcher results.
type DispatchMetrics struct {
	scans   atomic.Int64
	due     atomic.Int64
	sent    atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64

	mu       sync.Mutex
	lastScan time.Time
	scanTime *LatencyTracker
}

// NewDispatchMetrics creates zeroed counters.
func NewDispatchMetrics() *DispatchMetrics {
	return &DispatchMetrics{scanTime: NewLatencyTracker(100)}
}

// RecordScan adds the outcome of one scan.
func (m *DispatchMetrics) RecordScan(due, sent, skipped, failed int, took time.Duration) {
	m.scans.Add(1)
	m.due.Add(int64(due))
	m.sent.Add(int64(sent))
	m.skipped.Add(int64(skipped))
	m.failed.Add(int64(failed))
	m.scanTime.Record(took)

	m.mu.Lock()
	m.lastScan = time.Now()
	m.mu.Unlock()
}

// ToMap renders the counters for JSON output.
func (m *DispatchMetrics) ToMap() map[string]any {
	m.mu.Lock()
	last := m.lastScan
	m.mu.Unlock()

	out := map[string]any{
		"scans":     m.scans.Load(),
		"due":       m.due.Load(),
		"sent":      m.sent.Load(),
		"skipped":   m.skipped.Load(),
		"failed":    m.failed.Load(),
		"scan_time": m.scanTime.Stats().ToMap(),
	}
	if !last.IsZero() {
		out["last_scan"] = last.UTC().Format(time.RFC3339)
	}
	return out
}

// =============================================================================
// Database Pool Stats
// =============================================================================

// DBPoolStats holds database connection pool statistics.
type DBPoolStats struct {
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	MaxOpenConnections int           `json:"max_open_connections"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// GetDBPoolStats reads pool statistics from db. A nil db yields zero stats.
func GetDBPoolStats(db *sql.DB) DBPoolStats {
	if db == nil {
		return DBPoolStats{}
	}
	s := db.Stats()
	return DBPoolStats{
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		MaxOpenConnections: s.MaxOpenConnections,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}
}
