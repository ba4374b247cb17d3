package policy

import (
	"fmt"

	"github.com/toolgate/toolgate/pkg/types"
)

// ToolRules is the per-tool configured rule set: three pattern lists plus
// an optional per-tool default decision kind. Each pattern is a distinct
// entry, independently compiled; never separator-delimited in one string.
type ToolRules struct {
	Deny    []string            `yaml:"deny,omitempty" json:"deny,omitempty"`
	Confirm []string            `yaml:"confirm,omitempty" json:"confirm,omitempty"`
	Allow   []string            `yaml:"allow,omitempty" json:"allow,omitempty"`
	Default *types.DecisionKind `yaml:"default,omitempty" json:"default,omitempty"`
}

// PermissionConfig is the declarative permission configuration. It is
// treated as an immutable snapshot for the duration of one decision;
// reloads build a new snapshot and never mutate one in place.
type PermissionConfig struct {
	// GlobalDefault applies when a tool has no entry and no per-tool
	// default resolves. Empty means confirm.
	GlobalDefault types.DecisionKind `yaml:"global_default,omitempty" json:"global_default,omitempty"`

	// ShellTools names the tools whose input is a shell command string
	// subject to decomposition and the hardcoded safety rules.
	ShellTools []string `yaml:"shell_tools,omitempty" json:"shell_tools,omitempty"`

	Tools map[string]ToolRules `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// DefaultShellTools covers the common shell-executing tool names agents
// use when no explicit list is configured.
var DefaultShellTools = []string{"terminal", "run_command", "bash", "shell"}

// Validate rejects unknown decision kinds. Pattern validity is not
// checked here: an invalid pattern is a deny at decision time, not a
// load failure.
func (c PermissionConfig) Validate() error {
	if c.GlobalDefault != "" && !c.GlobalDefault.Valid() {
		return fmt.Errorf("global_default: unknown decision kind %q", c.GlobalDefault)
	}
	for name, tr := range c.Tools {
		if tr.Default != nil && !tr.Default.Valid() {
			return fmt.Errorf("tools.%s.default: unknown decision kind %q", name, *tr.Default)
		}
	}
	return nil
}
