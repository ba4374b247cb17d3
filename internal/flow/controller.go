// Package flow drives a tool call from a policy decision to a terminal
// status. Denies finish immediately; allows finish immediately unless
// the agent has its own confirmation surface; confirms suspend the call
// on the confirmation collaborator until a human resolves it, the call
// is cancelled, or delivery fails.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/toolgate/toolgate/internal/guard"
	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/pkg/types"
)

// ErrPromptUnavailable is wrapped by prompt delivery failures. The tool
// call is left in a terminal non-allowed state, never pending.
var ErrPromptUnavailable = errors.New("confirmation prompt unavailable")

// ErrConfirmationTimeout means the exchange expired before the user
// responded.
var ErrConfirmationTimeout = errors.New("confirmation timed out")

// PromptRequest is the outbound message to the confirmation
// collaborator: the call identity plus the option set it may choose
// from.
type PromptRequest struct {
	Call      types.ToolCall           `json:"call"`
	Options   []types.PermissionOption `json:"options"`
	SessionID string                   `json:"session_id,omitempty"`
	ExpiresAt time.Time                `json:"expires_at,omitempty"`
}

// PromptResponse is the collaborator's answer: one selected option ID,
// or a cancellation signal.
type PromptResponse struct {
	OptionID  string `json:"option_id,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// Prompter is the external confirmation collaborator.
type Prompter interface {
	Prompt(ctx context.Context, req PromptRequest) (PromptResponse, error)
}

// Emitter receives audit events for decisions and resolutions.
type Emitter interface {
	AppendEvent(ctx context.Context, ev types.Event) error
	Publish(ev types.Event)
}

// Controller owns tool-call records for the duration of their
// authorization.
type Controller struct {
	provider *policy.Provider
	guard    *guard.Guard
	prompter Prompter
	emit     Emitter
	logger   *slog.Logger
}

// New builds a controller. guard may be nil (no file-write post-check),
// emit may be nil (no auditing), logger may be nil.
func New(provider *policy.Provider, g *guard.Guard, prompter Prompter, emit Emitter, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{provider: provider, guard: g, prompter: prompter, emit: emit, logger: logger}
}

// AuthorizeOptions tags one call with its capabilities and context.
type AuthorizeOptions struct {
	// HasNativeSurface is true when the agent brings its own
	// confirmation UI; allows are then confirmed through it rather than
	// auto-granted.
	HasNativeSurface bool

	// Options is the option set offered to the user. Empty means the
	// default four-option set.
	Options []types.PermissionOption

	// FileWrite applies the sensitive-target guard to TargetPath after
	// an allow.
	FileWrite  bool
	TargetPath string

	SessionID string
}

// Authorize drives call to a terminal status and returns it. The error
// is non-nil only for prompt delivery failures and cancellation; the
// call status is terminal either way.
func (c *Controller) Authorize(ctx context.Context, call *types.ToolCall, opts AuthorizeOptions) (types.ToolCallStatus, error) {
	if call.ID == "" {
		call.ID = "call-" + uuid.NewString()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	call.Status = types.StatusPending

	options := opts.Options
	if len(options) == 0 {
		options = DefaultOptions()
	}

	outcome := c.decide(call)
	if outcome.Decision.Kind == types.DecisionAllow && opts.FileWrite && c.guard != nil {
		guarded := c.guard.Check(outcome.Decision, opts.TargetPath)
		if guarded.Kind != outcome.Decision.Kind {
			outcome = policy.Outcome{Decision: guarded, Source: types.SourceGuard}
		}
	}
	c.emitDecision(ctx, call, opts.SessionID, outcome)

	switch outcome.Decision.Kind {
	case types.DecisionDeny:
		return c.finishDenied(ctx, call, opts.SessionID, outcome.Decision.Reason, options), nil

	case types.DecisionAllow:
		if !opts.HasNativeSurface {
			// No surface to confirm through: auto-select an allow-once
			// option without contacting the user.
			c.terminate(ctx, call, opts.SessionID, types.StatusAllowed, "")
			return call.Status, nil
		}
		return c.delegate(ctx, call, opts, options)

	default: // confirm
		return c.delegate(ctx, call, opts, options)
	}
}

// decide runs the engine on the current snapshot, or the legacy
// global-default-only path when the call has no tool name.
func (c *Controller) decide(call *types.ToolCall) policy.Outcome {
	snap := c.provider.Snapshot()
	if call.ToolName == "" {
		return snap.GlobalDefault()
	}
	req := policy.Request{ToolName: call.ToolName, Input: call.Input}
	if call.Input == "" {
		// Externally-delegated calls expose only a title; matching
		// against it is a best-effort approximation, not true input.
		req.Input = call.Title
		req.TitleOnly = true
	}
	return snap.Decide(req)
}

func (c *Controller) finishDenied(ctx context.Context, call *types.ToolCall, sessionID, reason string, options []types.PermissionOption) types.ToolCallStatus {
	if findByKind(options, types.OptionRejectOnce) == nil {
		// The call cannot be rejected through a UI action that does not
		// exist in the offered set.
		c.terminate(ctx, call, sessionID, types.StatusCancelled, reason)
		return call.Status
	}
	c.terminate(ctx, call, sessionID, types.StatusRejected, reason)
	return call.Status
}

func (c *Controller) delegate(ctx context.Context, call *types.ToolCall, opts AuthorizeOptions, options []types.PermissionOption) (types.ToolCallStatus, error) {
	if c.prompter == nil {
		c.terminate(ctx, call, opts.SessionID, types.StatusRejected, "no confirmation collaborator configured")
		return call.Status, ErrPromptUnavailable
	}

	resp, err := c.prompter.Prompt(ctx, PromptRequest{
		Call:      *call,
		Options:   options,
		SessionID: opts.SessionID,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.terminate(ctx, call, opts.SessionID, types.StatusCancelled, "cancelled while awaiting confirmation")
			return call.Status, err
		}
		if errors.Is(err, ErrConfirmationTimeout) {
			c.terminate(ctx, call, opts.SessionID, types.StatusRejected, "confirmation timed out")
			return call.Status, err
		}
		c.terminate(ctx, call, opts.SessionID, types.StatusRejected, "confirmation delivery failed")
		return call.Status, err
	}
	if resp.Cancelled {
		c.terminate(ctx, call, opts.SessionID, types.StatusCancelled, "confirmation cancelled")
		return call.Status, nil
	}

	chosen := findByID(options, resp.OptionID)
	if chosen == nil {
		// An answer naming an option that was never offered cannot be
		// applied; treat it as a cancellation rather than faulting.
		c.terminate(ctx, call, opts.SessionID, types.StatusCancelled, "unknown option selected")
		return call.Status, nil
	}
	if chosen.Kind.Allows() {
		c.terminate(ctx, call, opts.SessionID, types.StatusAllowed, "")
	} else {
		c.terminate(ctx, call, opts.SessionID, types.StatusRejected, "rejected by user")
	}
	return call.Status, nil
}

func (c *Controller) terminate(ctx context.Context, call *types.ToolCall, sessionID string, status types.ToolCallStatus, reason string) {
	call.Status = status
	call.Reason = reason
	c.logger.Debug("tool call finished",
		"call_id", call.ID, "tool", call.ToolName, "status", status, "reason", reason)
	c.emitEvent(ctx, types.Event{
		Type:      "call_resolved",
		SessionID: sessionID,
		CallID:    call.ID,
		ToolName:  call.ToolName,
		Status:    status,
		Fields:    map[string]any{"reason": reason},
	})
}

func (c *Controller) emitDecision(ctx context.Context, call *types.ToolCall, sessionID string, out policy.Outcome) {
	c.emitEvent(ctx, types.Event{
		Type:      "decision",
		SessionID: sessionID,
		CallID:    call.ID,
		ToolName:  call.ToolName,
		Decision:  &out.Decision,
		Source:    out.Source,
	})
}

func (c *Controller) emitEvent(ctx context.Context, ev types.Event) {
	if c.emit == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now().UTC()
	if err := c.emit.AppendEvent(ctx, ev); err != nil {
		c.logger.Warn("append audit event", "type", ev.Type, "error", err)
	}
	c.emit.Publish(ev)
}
