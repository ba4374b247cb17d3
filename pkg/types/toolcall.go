package types

import "time"

// ToolCallStatus is the lifecycle state of one tool call. Pending is the
// only non-terminal state.
type ToolCallStatus string

const (
	StatusPending   ToolCallStatus = "pending"
	StatusAllowed   ToolCallStatus = "allowed"
	StatusRejected  ToolCallStatus = "rejected"
	StatusCancelled ToolCallStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s ToolCallStatus) Terminal() bool { return s != StatusPending }

// ToolCall is one discrete request by an agent to perform an action.
// Input holds the raw structured input when available; Title is the
// human-readable fallback for externally-delegated calls that expose
// nothing else.
type ToolCall struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Input     string         `json:"input,omitempty"`
	Title     string         `json:"title,omitempty"`
	Status    ToolCallStatus `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// OptionKind classifies a confirmation choice offered to the user.
type OptionKind string

const (
	OptionAllowOnce    OptionKind = "allow_once"
	OptionAllowAlways  OptionKind = "allow_always"
	OptionRejectOnce   OptionKind = "reject_once"
	OptionRejectAlways OptionKind = "reject_always"
)

// Allows reports whether choosing this kind grants the call.
func (k OptionKind) Allows() bool {
	return k == OptionAllowOnce || k == OptionAllowAlways
}

// PermissionOption is one selectable choice in a confirmation exchange.
// A set of these lives exactly as long as the exchange it was offered in.
type PermissionOption struct {
	ID   string     `json:"id"`
	Kind OptionKind `json:"kind"`
}
