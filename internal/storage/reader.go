package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the security_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	conn, err := openConn(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// EventRow represents a single row from the security_events table.
type EventRow struct {
	EventID                  string            `json:"event_id"`
	EventType                string            `json:"event_type"`
	Timestamp                time.Time         `json:"timestamp"`
	SessionID                string            `json:"session_id"`
	UserIdentifier           string            `json:"user_identifier"`
	ClientID                 string            `json:"client_id"`
	Action                   string            `json:"action"`
	Confidence               float64           `json:"confidence"`
	ProcessingTimeMs         float64           `json:"processing_time_ms"`
	AttackIDs                []string          `json:"attack_ids"`
	AttackCategories         []string          `json:"attack_categories"`
	AttackNames              []string          `json:"attack_names"`
	AttackSeverities         []string          `json:"attack_severities"`
	DetectorResults          json.RawMessage   `json:"detector_results"`
	InputLength              uint32            `json:"input_length"`
	RedactedInputPreview     string            `json:"redacted_input_preview"`
	Evidence                 []string          `json:"evidence"`
	AlertSeverity            string            `json:"alert_severity"`
	ProgressiveResponseLevel uint8             `json:"progressive_response_level"`
	IsShadow                 uint8             `json:"is_shadow"`
	Metadata                 map[string]string `json:"metadata"`
}

const eventColumns = "event_id, event_type, timestamp, session_id, user_identifier, client_id, " +
	"action, confidence, processing_time_ms, " +
	"attack_ids, attack_categories, attack_names, attack_severities, " +
	"detector_results, input_length, redacted_input_preview, evidence, " +
	"alert_severity, progressive_response_level, is_shadow, metadata"

func scanEventRow(scan func(...any) error) (*EventRow, error) {
	var e EventRow
	var detectorResults string
	err := scan(
		&e.EventID, &e.EventType, &e.Timestamp, &e.SessionID, &e.UserIdentifier, &e.ClientID,
		&e.Action, &e.Confidence, &e.ProcessingTimeMs,
		&e.AttackIDs, &e.AttackCategories, &e.AttackNames, &e.AttackSeverities,
		&detectorResults, &e.InputLength, &e.RedactedInputPreview, &e.Evidence,
		&e.AlertSeverity, &e.ProgressiveResponseLevel, &e.IsShadow, &e.Metadata,
	)
	if err != nil {
		return nil, err
	}
	if detectorResults == "" {
		detectorResults = "[]"
	}
	e.DetectorResults = json.RawMessage(detectorResults)
	return &e, nil
}

// ListEventsParams holds filters and pagination for event listing.
type ListEventsParams struct {
	ClientID       string
	Action         *string
	AlertSeverity  *string
	UserIdentifier *string
	Category       *string
	IsShadow       *bool
	StartTime      *time.Time
	EndTime        *time.Time
	Page           int
	PageSize       int
}

// ListEvents returns paginated, filtered security events and the total count.
func (r *Reader) ListEvents(ctx context.Context, params ListEventsParams) ([]EventRow, int, error) {
	conditions := []string{"client_id = @client_id"}
	args := []any{
		clickhouse.Named("client_id", params.ClientID),
	}

	if params.Action != nil {
		conditions = append(conditions, "action = @action")
		args = append(args, clickhouse.Named("action", *params.Action))
	}
	if params.AlertSeverity != nil {
		conditions = append(conditions, "alert_severity = @alert_severity")
		args = append(args, clickhouse.Named("alert_severity", *params.AlertSeverity))
	}
	if params.UserIdentifier != nil {
		conditions = append(conditions, "user_identifier = @user_identifier")
		args = append(args, clickhouse.Named("user_identifier", *params.UserIdentifier))
	}
	if params.Category != nil {
		conditions = append(conditions, "has(attack_categories, @category)")
		args = append(args, clickhouse.Named("category", *params.Category))
	}
	if params.IsShadow != nil {
		var v uint8
		if *params.IsShadow {
			v = 1
		}
		conditions = append(conditions, "is_shadow = @is_shadow")
		args = append(args, clickhouse.Named("is_shadow", v))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM security_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEvents count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT %s FROM security_events WHERE %s "+
			"ORDER BY timestamp DESC "+
			"LIMIT @limit OFFSET @offset",
		eventColumns, where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEvents query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []EventRow
	for rows.Next() {
		e, err := scanEventRow(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("ListEvents scan: %w", err)
		}
		events = append(events, *e)
	}

	return events, int(total), rows.Err()
}

// GetEvent returns a single event by client ID and event ID, or nil if not found.
func (r *Reader) GetEvent(ctx context.Context, clientID, eventID string) (*EventRow, error) {
	row := r.conn.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM security_events "+
			"WHERE client_id = @client_id AND event_id = @event_id", eventColumns),
		clickhouse.Named("client_id", clientID),
		clickhouse.Named("event_id", eventID),
	)

	e, err := scanEventRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	return e, nil
}

// PurgeExpired deletes events older than the retention window.
// Run periodically; relies on ClickHouse lightweight deletes.
func (r *Reader) PurgeExpired(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	err := r.conn.Exec(ctx,
		"DELETE FROM security_events WHERE timestamp < @cutoff",
		clickhouse.Named("cutoff", cutoff),
	)
	if err != nil {
		return fmt.Errorf("PurgeExpired: %w", err)
	}
	return nil
}
