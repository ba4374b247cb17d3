package types

import "time"

// Event is one audit record: a decision reached, an exchange opened, or
// an exchange resolved.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	CallID    string    `json:"call_id,omitempty"`

	ToolName string         `json:"tool_name,omitempty"`
	Decision *Decision      `json:"decision,omitempty"`
	Source   DecisionSource `json:"source,omitempty"`
	Status   ToolCallStatus `json:"status,omitempty"`

	Fields map[string]any `json:"fields,omitempty"`
}

// EventQuery filters audit store searches.
type EventQuery struct {
	SessionID string
	CallID    string
	Types     []string
	ToolName  string
	Kind      *DecisionKind
	Since     *time.Time
	Until     *time.Time

	Limit  int
	Offset int
	Asc    bool
}
