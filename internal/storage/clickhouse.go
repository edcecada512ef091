package storage

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// ClickHouseWriter writes security events to ClickHouse asynchronously.
// Write() is non-blocking: events are buffered and batch-inserted in a
// background goroutine.
type ClickHouseWriter struct {
	conn    driver.Conn
	buffer  chan *SecurityEvent
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger
}

// NewClickHouseWriter creates a ClickHouseWriter and starts the background flush loop.
func NewClickHouseWriter(dsn string, logger *zap.Logger) (*ClickHouseWriter, error) {
	conn, err := openConn(dsn)
	if err != nil {
		return nil, err
	}

	w := &ClickHouseWriter{
		conn:    conn,
		buffer:  make(chan *SecurityEvent, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}

	go w.flushLoop()
	return w, nil
}

func openConn(dsn string) (driver.Conn, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	// ParseDSN sets TLS when ?secure=true is in the DSN; enforce it here
	// so managed deployments on TLS-only ports keep working either way.
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}
	return conn, nil
}

// Write queues a security event for async insertion.
// Non-blocking: drops the event if the buffer is full.
func (w *ClickHouseWriter) Write(event *SecurityEvent) {
	select {
	case w.buffer <- event:
	default:
		w.logger.Warn("clickhouse buffer full, dropping event",
			zap.String("event_id", event.EventID),
		)
	}
}

// WriteMetricsSnapshot inserts a metrics snapshot synchronously.
// Snapshots are written on a timer, not per request, so a blocking
// insert here is acceptable.
func (w *ClickHouseWriter) WriteMetricsSnapshot(s *MetricsSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := w.conn.Exec(ctx, `
		INSERT INTO metrics_snapshots (
			timestamp, total_requests, blocked_requests, flagged_requests,
			passed_requests, bypassed_requests, avg_processing_time_ms,
			detection_rate, pattern_counts, response_level_counts
		) VALUES (@timestamp, @total, @blocked, @flagged, @passed,
			@bypassed, @avg_ms, @rate, @patterns, @levels)`,
		clickhouse.Named("timestamp", s.Timestamp),
		clickhouse.Named("total", s.TotalRequests),
		clickhouse.Named("blocked", s.BlockedRequests),
		clickhouse.Named("flagged", s.FlaggedRequests),
		clickhouse.Named("passed", s.PassedRequests),
		clickhouse.Named("bypassed", s.BypassedRequests),
		clickhouse.Named("avg_ms", s.AvgProcessingTimeMs),
		clickhouse.Named("rate", s.DetectionRate),
		clickhouse.Named("patterns", s.PatternCounts),
		clickhouse.Named("levels", s.ResponseLevelCounts),
	)
	if err != nil {
		w.logger.Error("clickhouse metrics snapshot failed", zap.Error(err))
	}
}

// Close signals the flush loop to drain remaining events, waits for it to
// finish (up to drainTimeout), and then returns. Safe to call once.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*SecurityEvent, 0, flushBatch)

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			// Drain remaining events from buffer
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case event := <-w.buffer:
					batch = append(batch, event)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *ClickHouseWriter) flush(events []*SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO security_events (
			event_id, event_type, timestamp, session_id, user_identifier, client_id,
			action, confidence, processing_time_ms,
			attack_ids, attack_categories, attack_names, attack_severities,
			detector_results, input_length, redacted_input_preview, evidence,
			alert_severity, progressive_response_level, is_shadow, metadata
		)
	`)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range events {
		var isShadow uint8
		if e.IsShadow {
			isShadow = 1
		}

		detectorResults, err := json.Marshal(e.DetectorResults)
		if err != nil {
			w.logger.Error("clickhouse detector results marshal failed",
				zap.String("event_id", e.EventID),
				zap.Error(err),
			)
			detectorResults = []byte("[]")
		}

		if err := batch.Append(
			e.EventID,
			e.EventType,
			e.Timestamp,
			e.SessionID,
			e.UserIdentifier,
			e.ClientID,
			e.Action,
			e.Confidence,
			e.ProcessingTimeMs,
			e.AttackIDs,
			e.AttackCategories,
			e.AttackNames,
			e.AttackSeverities,
			string(detectorResults),
			e.InputLength,
			e.RedactedInputPreview,
			e.Evidence,
			e.AlertSeverity,
			e.ProgressiveResponseLevel,
			isShadow,
			e.Metadata,
		); err != nil {
			w.logger.Error("clickhouse append event failed",
				zap.String("event_id", e.EventID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}

// LogWriter is a fallback EventWriter for local development.
// It logs events as structured JSON to stdout via zap.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *SecurityEvent) {
	w.logger.Info("security_event",
		zap.String("event_id", event.EventID),
		zap.String("client_id", event.ClientID),
		zap.String("action", event.Action),
		zap.Float64("confidence", event.Confidence),
		zap.String("alert_severity", event.AlertSeverity),
		zap.Uint8("response_level", event.ProgressiveResponseLevel),
		zap.Bool("is_shadow", event.IsShadow),
		zap.Strings("attack_ids", event.AttackIDs),
		zap.Float64("processing_time_ms", event.ProcessingTimeMs),
		zap.String("user_identifier", event.UserIdentifier),
		zap.String("preview", event.RedactedInputPreview),
	)
}

func (w *LogWriter) Close() {}

func (w *LogWriter) WriteMetricsSnapshot(s *MetricsSnapshot) {
	w.logger.Info("metrics_snapshot",
		zap.Uint64("total", s.TotalRequests),
		zap.Uint64("blocked", s.BlockedRequests),
		zap.Uint64("flagged", s.FlaggedRequests),
		zap.Uint64("passed", s.PassedRequests),
		zap.Float64("avg_processing_time_ms", s.AvgProcessingTimeMs),
		zap.Float64("detection_rate", s.DetectionRate),
	)
}
