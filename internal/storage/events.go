package storage

import "time"

// EventWriter is the interface for writing security events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *SecurityEvent)
	Close()
}

// MetricsWriter persists periodic metrics snapshots.
type MetricsWriter interface {
	WriteMetricsSnapshot(snapshot *MetricsSnapshot)
}

// EventTypeValidation is the event type stamped on validation decisions.
// The column exists so future event kinds (admin actions, config changes)
// can share the table.
const EventTypeValidation = "validation"

// DetectorOutcome is the per-detector summary persisted with an event,
// so the durable record can answer which detectors fired and with what
// confidence.
type DetectorOutcome struct {
	Detector      string   `json:"detector"`
	IsAttack      bool     `json:"is_attack"`
	Confidence    float64  `json:"confidence"`
	Patterns      []string `json:"patterns"`
	EvidenceCount int      `json:"evidence_count"`
}

// SecurityEvent represents a single validation decision to be persisted.
// Written once, never mutated; purged after the retention window.
type SecurityEvent struct {
	EventID                  string
	EventType                string
	Timestamp                time.Time
	SessionID                string
	UserIdentifier           string // derived, truncated session id
	ClientID                 string
	Action                   string
	Confidence               float64
	ProcessingTimeMs         float64
	AttackIDs                []string
	AttackCategories         []string
	AttackNames              []string
	AttackSeverities         []string
	DetectorResults          []DetectorOutcome
	InputLength              uint32
	RedactedInputPreview     string // first 500 chars after redaction
	Evidence                 []string
	AlertSeverity            string
	ProgressiveResponseLevel uint8
	IsShadow                 bool
	Metadata                 map[string]string
}

// MetricsSnapshot is a point-in-time copy of the running metrics,
// persisted on a timer for retention beyond process lifetime.
type MetricsSnapshot struct {
	Timestamp           time.Time
	TotalRequests       uint64
	BlockedRequests     uint64
	FlaggedRequests     uint64
	PassedRequests      uint64
	BypassedRequests    uint64
	AvgProcessingTimeMs float64
	DetectionRate       float64
	PatternCounts       map[string]uint64
	ResponseLevelCounts map[uint8]uint64
}

// InputPreviewLength is the max chars stored in redacted_input_preview.
const InputPreviewLength = 500

// MaxEvidenceItems caps the evidence list stored per event.
const MaxEvidenceItems = 20

// TruncatePreview returns the first maxLen runes of a preview string.
// It never splits a multi-byte UTF-8 character.
func TruncatePreview(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// CapEvidence returns at most MaxEvidenceItems evidence strings.
func CapEvidence(evidence []string) []string {
	if len(evidence) <= MaxEvidenceItems {
		return evidence
	}
	return evidence[:MaxEvidenceItems]
}
