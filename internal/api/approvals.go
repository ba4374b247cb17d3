package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/toolgate/toolgate/internal/flow"
	"github.com/toolgate/toolgate/pkg/types"
)

func (a *App) listApprovals(w http.ResponseWriter, r *http.Request) {
	if a.exchange == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, a.exchange.ListPending())
}

type resolveRequest struct {
	// OptionID selects one of the offered options. Decision is the
	// shorthand form: "allow" or "deny" picks the matching once-option.
	OptionID string `json:"option_id,omitempty"`
	Decision string `json:"decision,omitempty"`
	Cancel   bool   `json:"cancel,omitempty"`
	TOTPCode string `json:"totp_code,omitempty"`
}

func (a *App) resolveApproval(w http.ResponseWriter, r *http.Request) {
	if a.exchange == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "approvals not enabled"})
		return
	}
	id := chi.URLParam(r, "id")
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if a.cfg.Approvals.TOTP.Enabled {
		if !flow.ValidateTOTPCode(req.TOTPCode, a.totpSecret) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid TOTP code"})
			return
		}
	}

	if req.Cancel {
		if !a.exchange.Cancel(id) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "approval not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	optionID := req.OptionID
	if optionID == "" {
		pending, ok := a.exchange.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "approval not found"})
			return
		}
		optionID = shorthandOption(pending.Options, req.Decision)
		if optionID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "option_id or decision (allow/deny) is required"})
			return
		}
	}

	if !a.exchange.Resolve(id, optionID) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "approval not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// shorthandOption maps "allow"/"deny" to the once-variant in the
// offered option set.
func shorthandOption(options []types.PermissionOption, decision string) string {
	var want types.OptionKind
	switch {
	case strings.EqualFold(decision, "allow"), strings.EqualFold(decision, "approve"):
		want = types.OptionAllowOnce
	case strings.EqualFold(decision, "deny"), strings.EqualFold(decision, "reject"):
		want = types.OptionRejectOnce
	default:
		return ""
	}
	for _, opt := range options {
		if opt.Kind == want {
			return opt.ID
		}
	}
	return ""
}
