package types

// DecisionKind is the coarse policy verdict before any UI interaction.
type DecisionKind string

const (
	DecisionAllow   DecisionKind = "allow"
	DecisionDeny    DecisionKind = "deny"
	DecisionConfirm DecisionKind = "confirm"
)

// Valid reports whether k is one of the three known kinds.
func (k DecisionKind) Valid() bool {
	switch k {
	case DecisionAllow, DecisionDeny, DecisionConfirm:
		return true
	}
	return false
}

// Decision is the terminal output of the decision engine. A deny carries
// the reason shown to the caller; allow and confirm carry none.
type Decision struct {
	Kind   DecisionKind `json:"kind"`
	Reason string       `json:"reason,omitempty"`
}

func Allow() Decision             { return Decision{Kind: DecisionAllow} }
func Deny(reason string) Decision { return Decision{Kind: DecisionDeny, Reason: reason} }
func Confirm() Decision           { return Decision{Kind: DecisionConfirm} }

// DecisionSource records which layer produced a decision, for auditing.
type DecisionSource string

const (
	SourceHardcoded     DecisionSource = "hardcoded"
	SourceToolRule      DecisionSource = "tool_rule"
	SourceToolDefault   DecisionSource = "tool_default"
	SourceGlobalDefault DecisionSource = "global_default"
	SourceGuard         DecisionSource = "guard"
	SourceInvalidRule   DecisionSource = "invalid_rule"
)
