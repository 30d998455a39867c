package observability

import (
	"sync"
	"time"
)

// JobMetrics keeps in-process worker counters for the /stats endpoint.
// Prometheus carries the same outcomes across processes.
type JobMetrics struct {
	mu sync.Mutex

	claimed uint64
	done    uint64
	retried uint64
	failed  uint64

	runs          uint64
	totalDuration time.Duration
	maxDuration   time.Duration
	lastFinished  time.Time
}

type JobStats struct {
	Claimed         uint64
	Done            uint64
	Retried         uint64
	Failed          uint64
	AverageDuration time.Duration
	MaxDuration     time.Duration
	LastFinished    time.Time
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncClaimed() {
	m.mu.Lock()
	m.claimed++
	m.mu.Unlock()
}

// Finish records how a claimed job ended: "done", "retry" or "failed".
func (m *JobMetrics) Finish(result string, d time.Duration, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch result {
	case "done":
		m.done++
	case "retry":
		m.retried++
	case "failed":
		m.failed++
	}

	m.runs++
	m.totalDuration += d
	if d > m.maxDuration {
		m.maxDuration = d
	}
	m.lastFinished = at
}

func (m *JobMetrics) Snapshot() JobStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg time.Duration
	if m.runs > 0 {
		avg = m.totalDuration / time.Duration(m.runs)
	}

	return JobStats{
		Claimed:         m.claimed,
		Done:            m.done,
		Retried:         m.retried,
		Failed:          m.failed,
		AverageDuration: avg,
		MaxDuration:     m.maxDuration,
		LastFinished:    m.lastFinished,
	}
}
