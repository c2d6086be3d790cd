package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/capture"
	"github.com/vietanhdev/kirapilot-app-sub002/internal/tools"
)

type toolInfo struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	Requires             []tools.Capability `json:"requires"`
	Permitted            bool               `json:"permitted"`
	RequiresConfirmation bool               `json:"requires_confirmation"`
}

func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request) {
	specs := tools.Catalog()
	out := make([]toolInfo, len(specs))
	for i, spec := range specs {
		out[i] = toolInfo{
			Name:                 spec.Name,
			Description:          spec.Description,
			Requires:             spec.Requires,
			Permitted:            s.engine.HasPermission(spec.Name),
			RequiresConfirmation: s.engine.RequiresConfirmation(spec.Name),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":        out,
		"capabilities": s.engine.Grant().Capabilities(),
	})
}

type toolValidateRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// handleToolValidate answers 200 for denials too; denial is carried in the
// body.
func (s *Server) handleToolValidate(w http.ResponseWriter, r *http.Request) {
	var req toolValidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Validate(chi.URLParam(r, "name"), req.Arguments))
}

type toolFormatRequest struct {
	Raw        string `json:"raw"`
	DurationMs int64  `json:"duration_ms"`
	// When InteractionID is set the call is also logged against it.
	InteractionID string                 `json:"interaction_id"`
	Arguments     map[string]any `json:"arguments"`
	UserConfirmed bool                   `json:"user_confirmed"`
}

// handleToolFormat renders a result produced by a tool the host ran itself.
func (s *Server) handleToolFormat(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req toolFormatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	elapsed := time.Duration(req.DurationMs) * time.Millisecond
	res := s.engine.FormatResult(name, req.Raw, elapsed)
	res.Metadata.UserConfirmed = req.UserConfirmed

	if req.InteractionID != "" && s.pipeline != nil {
		call := capture.ToolCall{
			InteractionID: req.InteractionID,
			ToolName:      name,
			Arguments:     req.Arguments,
			Result:        req.Raw,
			Duration:      elapsed,
			Success:       res.Success,
			UserConfirmed: req.UserConfirmed,
		}
		if !res.Success {
			call.Error = res.UserMessage
		}
		s.pipeline.LogToolExecution(r.Context(), call)
	}
	writeJSON(w, http.StatusOK, res)
}
