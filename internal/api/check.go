package api

import (
	"net/http"

	"github.com/toolgate/toolgate/internal/flow"
	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/pkg/types"
)

type checkRequest struct {
	ToolName   string `json:"tool_name"`
	Input      string `json:"input"`
	TitleOnly  bool   `json:"title_only,omitempty"`
	FileWrite  bool   `json:"file_write,omitempty"`
	TargetPath string `json:"target_path,omitempty"`
}

type checkResponse struct {
	Decision types.DecisionKind   `json:"decision"`
	Reason   string               `json:"reason,omitempty"`
	Source   types.DecisionSource `json:"source"`
}

// check evaluates a call against the current rules without creating a
// tool-call record or contacting anyone. Useful for rule authoring.
func (a *App) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ToolName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "tool_name is required"})
		return
	}

	out := a.provider.Snapshot().Decide(policy.Request{
		ToolName:  req.ToolName,
		Input:     req.Input,
		TitleOnly: req.TitleOnly,
	})
	if out.Decision.Kind == types.DecisionAllow && req.FileWrite && a.guard != nil {
		guarded := a.guard.Check(out.Decision, req.TargetPath)
		if guarded.Kind != out.Decision.Kind {
			out = policy.Outcome{Decision: guarded, Source: types.SourceGuard}
		}
	}

	writeJSON(w, http.StatusOK, checkResponse{
		Decision: out.Decision.Kind,
		Reason:   out.Decision.Reason,
		Source:   out.Source,
	})
}

type authorizeRequest struct {
	ToolName   string `json:"tool_name"`
	Input      string `json:"input"`
	Title      string `json:"title,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	FileWrite  bool   `json:"file_write,omitempty"`
	TargetPath string `json:"target_path,omitempty"`
}

type authorizeResponse struct {
	CallID string               `json:"call_id"`
	Status types.ToolCallStatus `json:"status"`
	Reason string               `json:"reason,omitempty"`
}

// authorize drives a call to a terminal status. Confirms block until
// the exchange is resolved, times out, or the client goes away.
func (a *App) authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ToolName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "tool_name is required"})
		return
	}

	call := types.ToolCall{
		ToolName: req.ToolName,
		Input:    req.Input,
		Title:    req.Title,
	}
	status, err := a.controller.Authorize(r.Context(), &call, flow.AuthorizeOptions{
		FileWrite:  req.FileWrite,
		TargetPath: req.TargetPath,
		SessionID:  req.SessionID,
	})
	if err != nil {
		a.logger.Debug("authorize finished with error",
			"call_id", call.ID, "status", status, "error", err)
	}
	writeJSON(w, http.StatusOK, authorizeResponse{
		CallID: call.ID,
		Status: status,
		Reason: call.Reason,
	})
}
