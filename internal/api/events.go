package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rampart-ai/rampart/internal/storage"
)

func (d *Dependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	q := r.URL.Query()
	clientID := q.Get("client_id")
	if clientID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "client_id query parameter is required"})
		return
	}

	params := storage.ListEventsParams{
		ClientID: clientID,
		Page:     queryInt(q, "page", 1),
		PageSize: queryInt(q, "page_size", 50),
	}
	if params.PageSize > 200 {
		params.PageSize = 200
	}
	if params.Page < 1 {
		params.Page = 1
	}

	if v := q.Get("action"); v != "" {
		params.Action = &v
	}
	if v := q.Get("alert_severity"); v != "" {
		params.AlertSeverity = &v
	}
	if v := q.Get("user_identifier"); v != "" {
		params.UserIdentifier = &v
	}
	if v := q.Get("category"); v != "" {
		params.Category = &v
	}
	if v := q.Get("is_shadow"); v != "" {
		b := v == "true" || v == "1"
		params.IsShadow = &b
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}

	rows, total, err := d.Reader.ListEvents(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list events"})
		return
	}

	writeJSON(w, http.StatusOK, EventListResp{
		Events:   rows,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}

func (d *Dependencies) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	eventID := r.PathValue("event_id")
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "client_id query parameter is required"})
		return
	}

	event, err := d.Reader.GetEvent(r.Context(), clientID, eventID)
	if err != nil {
		d.Logger.Error("failed to get event", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get event"})
		return
	}
	if event == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Event not found."})
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func (d *Dependencies) handleGetMetrics(w http.ResponseWriter, _ *http.Request) {
	s := d.EventLogger.Metrics().Snapshot()
	writeJSON(w, http.StatusOK, MetricsResp{
		Timestamp:           s.Timestamp,
		TotalRequests:       s.TotalRequests,
		BlockedRequests:     s.BlockedRequests,
		FlaggedRequests:     s.FlaggedRequests,
		PassedRequests:      s.PassedRequests,
		BypassedRequests:    s.BypassedRequests,
		AvgProcessingTimeMs: s.AvgProcessingTimeMs,
		DetectionRate:       s.DetectionRate,
		PatternCounts:       s.PatternCounts,
		ResponseLevelCounts: s.ResponseLevelCounts,
	})
}

func (d *Dependencies) handleListAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, d.EventLogger.RecentAlerts())
}

func (d *Dependencies) handleIdentifierStatus(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")
	locked, until := d.Responses.IsLockedOut(identifier)

	resp := IdentifierStatusResp{
		Identifier: identifier,
		Level:      d.Responses.Level(identifier),
		LockedOut:  locked,
	}
	if locked {
		resp.LockoutUntil = &until
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleResetIdentifier(w http.ResponseWriter, r *http.Request) {
	var req ResetIdentifierReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Identifier == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "identifier is required"})
		return
	}

	d.Responses.Reset(req.Identifier)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func queryInt(q url.Values, key string, defaultVal int) int {
	v := q.Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
