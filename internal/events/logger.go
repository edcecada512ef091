package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/response"
	"github.com/rampart-ai/rampart/internal/storage"
)

// userIdentifierLength is how much of the session id is kept when
// deriving the per-user identifier for progressive response and audit.
const userIdentifierLength = 16

// defaultAlertBuffer bounds the in-memory recent-alerts ring.
const defaultAlertBuffer = 100

// Metadata keys the validation handler sets for the recorder.
const (
	MetaClientID = "client_id"
	MetaShadow   = "shadow"
)

// Alert is the in-memory summary of a non-PASS decision, kept in a
// bounded ring and handed to registered callbacks.
type Alert struct {
	EventID    string    `json:"event_id"`
	Timestamp  time.Time `json:"timestamp"`
	ClientID   string    `json:"client_id"`
	SessionID  string    `json:"session_id"`
	Action     string    `json:"action"`
	Severity   string    `json:"severity"`
	Confidence float64   `json:"confidence"`
	AttackIDs  []string  `json:"attack_ids"`
}

// AlertCallback receives each new alert. Callbacks run synchronously on
// the recording goroutine; panics are contained.
type AlertCallback func(Alert)

// Options configures the event logger.
type Options struct {
	// LogAllDetections persists PASS decisions too. Off by default:
	// PASS events still update metrics but are not written to storage.
	LogAllDetections bool

	// AlertOnAttacks enables the recent-alerts ring and callback fan-out
	// for non-PASS decisions.
	AlertOnAttacks bool

	// AlertBufferSize bounds the recent-alerts ring. Zero means the
	// default of 100.
	AlertBufferSize int
}

// Logger records validation decisions: it persists events, maintains
// metrics, drives the progressive response manager, and fans out
// alerts. It implements engine.Recorder and never lets a failure
// surface back into the validation path.
type Logger struct {
	opts      Options
	writer    storage.EventWriter
	metricsW  storage.MetricsWriter
	metrics   *Metrics
	responses *response.Manager
	logger    *zap.Logger

	mu        sync.Mutex
	alerts    []Alert
	callbacks []AlertCallback
}

// NewLogger wires the event logger. metricsWriter may be nil when
// snapshot persistence is disabled.
func NewLogger(opts Options, writer storage.EventWriter, metricsWriter storage.MetricsWriter, metrics *Metrics, responses *response.Manager, logger *zap.Logger) *Logger {
	if opts.AlertBufferSize <= 0 {
		opts.AlertBufferSize = defaultAlertBuffer
	}
	return &Logger{
		opts:      opts,
		writer:    writer,
		metricsW:  metricsWriter,
		metrics:   metrics,
		responses: responses,
		logger:    logger,
	}
}

// UserIdentifier derives the progressive-response identifier from a
// session id. Only a truncated prefix is kept so the stored identifier
// cannot be replayed as a session credential.
func UserIdentifier(sessionID string) string {
	runes := []rune(sessionID)
	if len(runes) <= userIdentifierLength {
		return sessionID
	}
	return string(runes[:userIdentifierLength])
}

// ClassifySeverity maps a decision to an alert severity.
func ClassifySeverity(action engine.Action, confidence float64) engine.Severity {
	switch action {
	case engine.ActionBlock:
		switch {
		case confidence >= 0.95:
			return engine.SeverityCritical
		case confidence >= 0.8:
			return engine.SeverityHigh
		default:
			return engine.SeverityMedium
		}
	case engine.ActionFlag:
		if confidence >= 0.8 {
			return engine.SeverityMedium
		}
		return engine.SeverityLow
	default:
		return engine.SeverityLow
	}
}

// Record processes one validation decision. Implements engine.Recorder.
func (l *Logger) Record(decision *engine.SecurityDecision, originalText string, processingTime time.Duration, sessionID string, metadata map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event recording panic", zap.Any("panic", r))
		}
	}()

	uid := UserIdentifier(sessionID)
	processingMs := float64(processingTime.Microseconds()) / 1000.0
	alertSeverity := ClassifySeverity(decision.Action, decision.Confidence)

	// Escalation follows the alert severity of the decision, not the
	// severity of the matched patterns: a low-confidence FLAG carrying a
	// critical pattern still counts as one low-weight attempt.
	level := l.responses.Level(uid)
	if decision.Action != engine.ActionPass && len(decision.DetectedAttacks) > 0 {
		level = l.responses.RecordAttempt(uid, alertSeverity)
	}

	l.metrics.RecordDecision(decision.Action, decision.DetectedAttacks, processingMs, level)

	if decision.Action == engine.ActionPass && !l.opts.LogAllDetections {
		return
	}

	event := l.buildEvent(decision, originalText, processingMs, sessionID, uid, alertSeverity, level, metadata)
	l.writer.Write(event)

	if l.opts.AlertOnAttacks && decision.Action != engine.ActionPass {
		l.emitAlert(Alert{
			EventID:    event.EventID,
			Timestamp:  event.Timestamp,
			ClientID:   event.ClientID,
			SessionID:  sessionID,
			Action:     decision.Action.String(),
			Severity:   alertSeverity.String(),
			Confidence: decision.Confidence,
			AttackIDs:  event.AttackIDs,
		})
	}
}

// RecordBypass counts a request that skipped validation. Implements
// engine.Recorder.
func (l *Logger) RecordBypass() {
	l.metrics.RecordBypass()
}

func (l *Logger) buildEvent(decision *engine.SecurityDecision, originalText string, processingMs float64, sessionID, uid string, alertSeverity engine.Severity, level int, metadata map[string]string) *storage.SecurityEvent {
	ids := make([]string, 0, len(decision.DetectedAttacks))
	categories := make([]string, 0, len(decision.DetectedAttacks))
	names := make([]string, 0, len(decision.DetectedAttacks))
	severities := make([]string, 0, len(decision.DetectedAttacks))
	for _, p := range decision.DetectedAttacks {
		ids = append(ids, p.ID)
		categories = append(categories, p.Category)
		names = append(names, p.Name)
		severities = append(severities, p.Severity.String())
	}

	var evidence []string
	detectorResults := make([]storage.DetectorOutcome, 0, len(decision.DetectionResults))
	for _, r := range decision.DetectionResults {
		if r.IsAttack {
			evidence = append(evidence, r.Evidence...)
		}
		patterns := make([]string, 0, len(r.MatchedPatterns))
		for _, p := range r.MatchedPatterns {
			patterns = append(patterns, p.ID)
		}
		detectorResults = append(detectorResults, storage.DetectorOutcome{
			Detector:      r.DetectorName,
			IsAttack:      r.IsAttack,
			Confidence:    r.Confidence,
			Patterns:      patterns,
			EvidenceCount: len(r.Evidence),
		})
	}

	return &storage.SecurityEvent{
		EventID:                  uuid.NewString(),
		EventType:                storage.EventTypeValidation,
		Timestamp:                time.Now().UTC(),
		SessionID:                sessionID,
		UserIdentifier:           uid,
		ClientID:                 metadata[MetaClientID],
		Action:                   decision.Action.String(),
		Confidence:               decision.Confidence,
		ProcessingTimeMs:         processingMs,
		AttackIDs:                ids,
		AttackCategories:         categories,
		AttackNames:              names,
		AttackSeverities:         severities,
		DetectorResults:          detectorResults,
		InputLength:              uint32(len([]rune(originalText))),
		RedactedInputPreview:     storage.TruncatePreview(Redact(originalText), storage.InputPreviewLength),
		Evidence:                 storage.CapEvidence(evidence),
		AlertSeverity:            alertSeverity.String(),
		ProgressiveResponseLevel: uint8(level),
		IsShadow:                 metadata[MetaShadow] == "true",
		Metadata:                 metadata,
	}
}

func (l *Logger) emitAlert(alert Alert) {
	l.mu.Lock()
	l.alerts = append(l.alerts, alert)
	if len(l.alerts) > l.opts.AlertBufferSize {
		l.alerts = l.alerts[len(l.alerts)-l.opts.AlertBufferSize:]
	}
	callbacks := make([]AlertCallback, len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.mu.Unlock()

	for _, cb := range callbacks {
		l.invoke(cb, alert)
	}
}

// invoke runs one callback with panic containment. A broken alert sink
// must not take down event recording.
func (l *Logger) invoke(cb AlertCallback, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("alert callback panic", zap.Any("panic", r))
		}
	}()
	cb(alert)
}

// OnAlert registers a callback invoked for every new alert.
func (l *Logger) OnAlert(cb AlertCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

// RecentAlerts returns a copy of the alert ring, newest last.
func (l *Logger) RecentAlerts() []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Alert, len(l.alerts))
	copy(out, l.alerts)
	return out
}

// Metrics exposes the running counters for the metrics endpoint.
func (l *Logger) Metrics() *Metrics {
	return l.metrics
}

// RunSnapshots persists a metrics snapshot every interval until the
// context is cancelled. No-op when no metrics writer is configured.
func (l *Logger) RunSnapshots(ctx context.Context, interval time.Duration) {
	if l.metricsW == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.metricsW.WriteMetricsSnapshot(l.metrics.Snapshot())
		}
	}
}
