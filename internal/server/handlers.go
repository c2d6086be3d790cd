package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/analytics"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/capture"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/config"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/evidence"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/feedback"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/interaction"
	kotel "github.com/vietanhdev/kirapilot-app-sub002/internal/otel"
)

const defaultListLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if r.URL.Query().Get("detail") == "true" {
		components := map[string]any{
			"interaction_store": "ok",
			"capture_pipeline":  "ok",
		}
		if s.store == nil {
			components["interaction_store"] = "disabled"
		}
		if s.pipeline == nil {
			components["capture_pipeline"] = "disabled"
		} else {
			components["pending_correlations"] = s.pipeline.Pending()
		}
		if s.engine == nil {
			components["tool_engine"] = "disabled"
		} else {
			components["tool_engine"] = "ok"
		}
		resp["components"] = components
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// filterFromQuery reads the shared list filter from query parameters.
func filterFromQuery(r *http.Request) (evidence.Filter, error) {
	q := r.URL.Query()
	f := evidence.Filter{
		Backend:    q.Get("backend"),
		SearchText: q.Get("q"),
	}
	var err error
	if v := q.Get("from"); v != "" {
		if f.StartDate, err = time.Parse(time.RFC3339, v); err != nil {
			return f, errors.New("from must be RFC3339")
		}
	}
	if v := q.Get("to"); v != "" {
		if f.EndDate, err = time.Parse(time.RFC3339, v); err != nil {
			return f, errors.New("to must be RFC3339")
		}
	}
	if v := q.Get("has_errors"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("has_errors must be a boolean")
		}
		f.HasErrors = &b
	}
	if v := q.Get("has_tool_calls"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("has_tool_calls must be a boolean")
		}
		f.HasToolCalls = &b
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	return f, nil
}

type captureOpenRequest struct {
	Text            string              `json:"text"`
	SessionID       string              `json:"session_id"`
	Backend         interaction.Backend `json:"backend"`
	SystemPrompt    string              `json:"system_prompt"`
	ContextSnapshot string              `json:"context_snapshot"`
}

func (s *Server) handleCaptureOpen(w http.ResponseWriter, r *http.Request) {
	var req captureOpenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := s.pipeline.Open(r.Context(), req.Text, capture.Input{
		SessionID:       req.SessionID,
		Backend:         req.Backend,
		SystemPrompt:    req.SystemPrompt,
		ContextSnapshot: req.ContextSnapshot,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type captureCloseRequest struct {
	Response     string `json:"response"`
	Reasoning    string `json:"reasoning"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Error        string `json:"error"`
}

// handleCaptureClose always answers 202: an unknown id and a failed write
// are both reported through logs and the status callback, never to the
// conversational caller.
func (s *Server) handleCaptureClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req captureCloseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.pipeline.Close(r.Context(), id, capture.Output{
		Response:     req.Response,
		Reasoning:    req.Reasoning,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
		Error:        req.Error,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

type captureToolRequest struct {
	ToolName      string                 `json:"tool_name"`
	Arguments     map[string]any `json:"arguments"`
	Result        string                 `json:"result"`
	DurationMs    int64                  `json:"duration_ms"`
	Success       bool                   `json:"success"`
	Error         string                 `json:"error"`
	Reasoning     string                 `json:"reasoning"`
	UserConfirmed bool                   `json:"user_confirmed"`
}

func (s *Server) handleCaptureTool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req captureToolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ToolName == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tool_name is required")
		return
	}
	s.pipeline.LogToolExecution(r.Context(), capture.ToolCall{
		InteractionID: id,
		ToolName:      req.ToolName,
		Arguments:     req.Arguments,
		Result:        req.Result,
		Duration:      time.Duration(req.DurationMs) * time.Millisecond,
		Success:       req.Success,
		Error:         req.Error,
		Reasoning:     req.Reasoning,
		UserConfirmed: req.UserConfirmed,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"interaction_id": id})
}

func (s *Server) handleInteractionList(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	records, err := s.analytics.Records(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"limit":   f.Limit,
		"offset":  f.Offset,
	})
}

func (s *Server) handleInteractionGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.analytics.Record(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleInteractionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	log.Info().Str("interaction_id", id).Func(kotel.LogTraceFields(r.Context())).Msg("interaction_deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInteractionVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	valid, err := s.store.Verify(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "valid": valid})
}

func (s *Server) handleFeedbackSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var fb interaction.Feedback
	if !decodeBody(w, r, &fb) {
		return
	}
	err := s.analytics.SubmitFeedback(r.Context(), id, fb)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"interaction_id": id})
	case errors.Is(err, analytics.ErrInvalidFeedback):
		writeError(w, http.StatusBadRequest, "invalid_feedback", err.Error())
	default:
		writeStoreError(w, err)
	}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	a, err := s.analytics.Analytics(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q analytics.Query
	if !decodeBody(w, r, &q) {
		return
	}
	records, err := s.analytics.Search(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

// handleExport renders into a buffer first so a failure midway still gets
// a proper error status.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req analytics.ExportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var buf bytes.Buffer
	if err := s.analytics.Export(r.Context(), &buf, req); err != nil {
		if errors.Is(err, analytics.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, "invalid_request", "format must be csv or json")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if req.Format == analytics.FormatCSV {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="interactions.csv"`)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleFeedbackAnalysis(w http.ResponseWriter, r *http.Request) {
	var tr *feedback.TimeRange
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		f, err := filterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		tr = &feedback.TimeRange{Start: f.StartDate, End: f.EndDate}
	}
	a, err := s.feedback.AnalyzePatterns(r.Context(), tr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleFeedbackSummary(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	sum, err := s.feedback.Summarize(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRetentionGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Retention())
}

// handleRetentionPatch stores the patched config and swaps it into the
// pipeline; in-flight correlations close under the new values. A readable
// override file owns the config, so patches are refused while it exists.
func (s *Server) handleRetentionPatch(w http.ResponseWriter, r *http.Request) {
	var p config.RetentionPatch
	if !decodeBody(w, r, &p) {
		return
	}
	if s.retentionFile != "" {
		if _, err := config.LoadRetentionFile(s.retentionFile); err == nil {
			writeError(w, http.StatusConflict, "retention_file_active",
				"retention is managed by "+s.retentionFile+"; edit the file instead")
			return
		}
	}
	next, err := s.store.UpdateRetentionConfig(r.Context(), p)
	if err != nil {
		if errors.Is(err, config.ErrInvalidRetention) {
			writeError(w, http.StatusBadRequest, "invalid_retention", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	s.pipeline.SetRetention(next)
	log.Info().Bool("enabled", next.Enabled).Str("verbosity", string(next.Verbosity)).Func(kotel.LogTraceFields(r.Context())).Msg("retention_config_updated")
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	ret := s.pipeline.Retention()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":        st,
		"max_records":  ret.MaxRecords,
		"max_size_mb":  ret.MaxSizeMB,
		"over_records": ret.MaxRecords > 0 && st.Count > ret.MaxRecords,
		"over_size":    ret.MaxSizeMB > 0 && st.TotalSizeBytes > int64(ret.MaxSizeMB)*1024*1024,
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, evidence.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", err.Error())
}
