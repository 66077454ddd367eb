package pipeline

import (
	"sync/atomic"
	"time"
)

// Metrics tracks pipeline outcomes for the admin surface. All
// counters are monotonic since process start.
type Metrics struct {
	total     atomic.Int64
	success   atomic.Int64
	cacheHits atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	latencyNS atomic.Int64
}

// NewMetrics builds an empty metrics sink.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Observe records one finished run.
func (m *Metrics) Observe(status Status, elapsed time.Duration) {
	m.total.Add(1)
	m.latencyNS.Add(int64(elapsed))
	switch status {
	case StatusSuccess:
		m.success.Add(1)
	case StatusCacheHit:
		m.cacheHits.Add(1)
	case StatusRejected:
		m.rejected.Add(1)
	case StatusFailed:
		m.failed.Add(1)
	case StatusCancelled:
		m.cancelled.Add(1)
	}
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Total        int64   `json:"total"`
	Success      int64   `json:"success"`
	CacheHits    int64   `json:"cache_hits"`
	Rejected     int64   `json:"rejected"`
	Failed       int64   `json:"failed"`
	Cancelled    int64   `json:"cancelled"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Snapshot reads the counters.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Total:     m.total.Load(),
		Success:   m.success.Load(),
		CacheHits: m.cacheHits.Load(),
		Rejected:  m.rejected.Load(),
		Failed:    m.failed.Load(),
		Cancelled: m.cancelled.Load(),
	}
	if s.Total > 0 {
		s.AvgLatencyMS = float64(m.latencyNS.Load()) / float64(s.Total) / 1e6
	}
	return s
}
