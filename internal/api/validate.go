package api

import (
	"net/http"
	"time"

	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/events"
)

// handleValidate implements POST /v1/validate.
// Auth middleware has already validated the Bearer token and injected
// the client context.
func (d *Dependencies) handleValidate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ValidateRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "text is required"})
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "session_id is required"})
		return
	}

	client := clientFromContext(r.Context())
	if client == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing client context"})
		return
	}

	isShadow := client.Mode == "shadow"

	// The recorder receives request metadata verbatim; stamp the client
	// identity and mode onto it so events carry both.
	metadata := make(map[string]string, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata[events.MetaClientID] = client.ClientID
	if isShadow {
		metadata[events.MetaShadow] = "true"
	}

	decision := d.Orchestrator.Validate(r.Context(), &engine.Request{
		Text:      req.Text,
		SessionID: req.SessionID,
		Metadata:  metadata,
		Policy:    client.Policy,
	})

	// Shadow mode: the real decision is recorded for analysis but the
	// caller always sees PASS with no enforcement payload.
	responseAction := decision.Action
	if isShadow && decision.Action != engine.ActionPass {
		responseAction = engine.ActionPass
	}

	resp := ValidateResponse{
		Action:           responseAction.String(),
		Confidence:       decision.Confidence,
		IsShadow:         isShadow,
		ProcessingTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
	}

	if responseAction != engine.ActionPass {
		resp.DetectedAttacks = toPatternResp(decision.DetectedAttacks)
		resp.SanitizedInput = decision.SanitizedInput
		resp.UserMessage = decision.UserMessage
		resp.TechnicalDetails = decision.TechnicalDetails
		resp.Detectors = toDetectionResp(decision.DetectionResults)
		resp.Guidance = toGuidanceResp(decision.Guidance)
	}

	writeJSON(w, http.StatusOK, resp)
}

func toPatternResp(patterns []engine.AttackPattern) []AttackPatternResp {
	out := make([]AttackPatternResp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, AttackPatternResp{
			ID:       p.ID,
			Category: p.Category,
			Name:     p.Name,
			Severity: p.Severity.String(),
		})
	}
	return out
}

func toDetectionResp(results []engine.DetectionResult) []DetectionResultResp {
	out := make([]DetectionResultResp, 0, len(results))
	for _, r := range results {
		out = append(out, DetectionResultResp{
			Detector:   r.DetectorName,
			IsAttack:   r.IsAttack,
			Confidence: r.Confidence,
			Evidence:   r.Evidence,
		})
	}
	return out
}

func toGuidanceResp(g *engine.GuidanceMessage) *GuidanceResp {
	if g == nil {
		return nil
	}
	return &GuidanceResp{
		Title:       g.Title,
		Content:     g.Content,
		ActionItems: g.ActionItems,
		AppealInfo:  g.AppealInfo,
	}
}
