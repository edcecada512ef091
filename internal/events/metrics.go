package events

import (
	"sync"
	"time"

	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/storage"
)

// latencySmoothing is the exponential-moving-average factor for
// processing time.
const latencySmoothing = 0.1

// Metrics holds the process-wide running counters. Mutated under lock
// on every decision; snapshotted periodically to durable storage.
type Metrics struct {
	mu sync.Mutex

	total    uint64
	blocked  uint64
	flagged  uint64
	passed   uint64
	bypassed uint64

	avgProcessingMs float64
	detectionRate   float64

	patternCounts map[string]uint64
	levelCounts   map[uint8]uint64
}

// NewMetrics creates zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		patternCounts: make(map[string]uint64),
		levelCounts:   make(map[uint8]uint64),
	}
}

// RecordDecision folds one decision into the counters.
func (m *Metrics) RecordDecision(action engine.Action, patterns []engine.AttackPattern, processingMs float64, level int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	switch action {
	case engine.ActionBlock:
		m.blocked++
	case engine.ActionFlag:
		m.flagged++
	default:
		m.passed++
	}

	if m.total == 1 {
		m.avgProcessingMs = processingMs
	} else {
		m.avgProcessingMs = latencySmoothing*processingMs + (1-latencySmoothing)*m.avgProcessingMs
	}
	m.detectionRate = float64(m.blocked+m.flagged) / float64(m.total)

	for _, p := range patterns {
		m.patternCounts[p.ID]++
	}
	if action != engine.ActionPass {
		m.levelCounts[uint8(level)]++
	}
}

// RecordBypass counts a request that skipped validation entirely.
func (m *Metrics) RecordBypass() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bypassed++
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() *storage.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	patterns := make(map[string]uint64, len(m.patternCounts))
	for k, v := range m.patternCounts {
		patterns[k] = v
	}
	levels := make(map[uint8]uint64, len(m.levelCounts))
	for k, v := range m.levelCounts {
		levels[k] = v
	}

	return &storage.MetricsSnapshot{
		Timestamp:           time.Now().UTC(),
		TotalRequests:       m.total,
		BlockedRequests:     m.blocked,
		FlaggedRequests:     m.flagged,
		PassedRequests:      m.passed,
		BypassedRequests:    m.bypassed,
		AvgProcessingTimeMs: m.avgProcessingMs,
		DetectionRate:       m.detectionRate,
		PatternCounts:       patterns,
		ResponseLevelCounts: levels,
	}
}
