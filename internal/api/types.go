package api

import (
	"encoding/json"
	"time"

	"github.com/rampart-ai/rampart/internal/storage"
)

// --- POST /v1/validate request/response ---

// ValidateRequest is the JSON body for POST /v1/validate.
type ValidateRequest struct {
	Text      string            `json:"text"`
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DetectionResultResp is the per-detector breakdown in a validation response.
type DetectionResultResp struct {
	Detector   string   `json:"detector"`
	IsAttack   bool     `json:"is_attack"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence,omitempty"`
}

// AttackPatternResp summarizes one detected pattern.
type AttackPatternResp struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
}

// GuidanceResp is the educational feedback attached to FLAG and BLOCK responses.
type GuidanceResp struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	ActionItems []string `json:"action_items,omitempty"`
	AppealInfo  string   `json:"appeal_info,omitempty"`
}

// ValidateResponse is the JSON body returned by POST /v1/validate.
type ValidateResponse struct {
	Action           string                `json:"action"`
	Confidence       float64               `json:"confidence"`
	DetectedAttacks  []AttackPatternResp   `json:"detected_attacks,omitempty"`
	SanitizedInput   string                `json:"sanitized_input,omitempty"`
	UserMessage      string                `json:"user_message,omitempty"`
	TechnicalDetails string                `json:"technical_details,omitempty"`
	Detectors        []DetectionResultResp `json:"detectors,omitempty"`
	Guidance         *GuidanceResp         `json:"guidance,omitempty"`
	IsShadow         bool                  `json:"is_shadow"`
	ProcessingTimeMs float64               `json:"processing_time_ms"`
}

// --- Client CRUD ---

// CreateClientReq is the JSON body for POST /api/rampart/clients.
type CreateClientReq struct {
	Name string `json:"name"`
}

// CreateClientResp includes the plaintext API key (shown once).
type CreateClientResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKey       string    `json:"api_key"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	Mode         string    `json:"mode"`
	CreatedAt    time.Time `json:"created_at"`
}

// UpdateClientReq is the JSON body for PATCH /api/rampart/clients/{id}.
type UpdateClientReq struct {
	Name *string `json:"name,omitempty"`
	Mode *string `json:"mode,omitempty"`
}

// ClientResp is a client without its plaintext key.
type ClientResp struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	APIKeyPrefix   string          `json:"api_key_prefix"`
	Mode           string          `json:"mode"`
	DetectorConfig json.RawMessage `json:"detector_config"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RotateKeyResp includes the new plaintext API key (shown once).
type RotateKeyResp struct {
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}

// UpdateDetectorConfigReq is the JSON body for PUT .../detector-config.
type UpdateDetectorConfigReq struct {
	DetectorConfig json.RawMessage `json:"detector_config"`
}

// --- Security Events ---

// EventListResp is a page of security events. EventRow already carries
// JSON tags, so rows are returned as-is.
type EventListResp struct {
	Events   []storage.EventRow `json:"events"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// --- Metrics ---

// MetricsResp is the JSON shape of GET /api/rampart/metrics.
type MetricsResp struct {
	Timestamp           time.Time         `json:"timestamp"`
	TotalRequests       uint64            `json:"total_requests"`
	BlockedRequests     uint64            `json:"blocked_requests"`
	FlaggedRequests     uint64            `json:"flagged_requests"`
	PassedRequests      uint64            `json:"passed_requests"`
	BypassedRequests    uint64            `json:"bypassed_requests"`
	AvgProcessingTimeMs float64           `json:"avg_processing_time_ms"`
	DetectionRate       float64           `json:"detection_rate"`
	PatternCounts       map[string]uint64 `json:"pattern_counts"`
	ResponseLevelCounts map[uint8]uint64  `json:"response_level_counts"`
}

// --- Progressive response ---

// ResetIdentifierReq is the JSON body for POST /api/rampart/progressive/reset.
type ResetIdentifierReq struct {
	Identifier string `json:"identifier"`
}

// IdentifierStatusResp reports an identifier's current standing.
type IdentifierStatusResp struct {
	Identifier   string     `json:"identifier"`
	Level        int        `json:"level"`
	LockedOut    bool       `json:"locked_out"`
	LockoutUntil *time.Time `json:"lockout_until,omitempty"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
