// Package policy implements the tool-invocation permission decision
// engine: hardcoded safety rules first, then per-tool configured
// deny/confirm/allow patterns with deny > confirm > allow precedence,
// then per-tool and global defaults.
package policy

import (
	"github.com/toolgate/toolgate/internal/pattern"
	"github.com/toolgate/toolgate/internal/safety"
	"github.com/toolgate/toolgate/internal/shell"
	"github.com/toolgate/toolgate/pkg/types"
)

// Request is one capability-tagged decision request. TitleOnly marks
// calls from externally-delegated agents that expose no raw input; the
// title then stands in for pattern matching. That substitution is an
// approximation: a title is not the command that will run.
type Request struct {
	ToolName  string
	Input     string
	TitleOnly bool
}

// Outcome pairs the decision with the layer that produced it.
type Outcome struct {
	Decision types.Decision
	Source   types.DecisionSource
}

type compiledToolRules struct {
	deny    pattern.RuleSet
	confirm pattern.RuleSet
	allow   pattern.RuleSet
	def     *types.DecisionKind
}

func (c compiledToolRules) allValid() bool {
	return c.deny.AllValid() && c.confirm.AllValid() && c.allow.AllValid()
}

// Engine is an immutable compiled snapshot of one PermissionConfig. It
// is a pure function holder: Decide performs no I/O and is safe for
// unsynchronized concurrent use.
type Engine struct {
	checker    *safety.Checker
	global     types.DecisionKind
	shellTools map[string]struct{}
	tools      map[string]compiledToolRules
}

// NewEngine compiles cfg into a snapshot. Compilation never fails:
// invalid patterns become deny-producing rules at decision time.
func NewEngine(cfg PermissionConfig, checker *safety.Checker) *Engine {
	if checker == nil {
		checker = safety.DefaultChecker()
	}
	global := cfg.GlobalDefault
	if global == "" || !global.Valid() {
		global = types.DecisionConfirm
	}

	shellTools := cfg.ShellTools
	if len(shellTools) == 0 {
		shellTools = DefaultShellTools
	}
	st := make(map[string]struct{}, len(shellTools))
	for _, name := range shellTools {
		st[name] = struct{}{}
	}

	tools := make(map[string]compiledToolRules, len(cfg.Tools))
	for name, tr := range cfg.Tools {
		tools[name] = compiledToolRules{
			deny:    pattern.CompileSet(tr.Deny),
			confirm: pattern.CompileSet(tr.Confirm),
			allow:   pattern.CompileSet(tr.Allow),
			def:     tr.Default,
		}
	}

	return &Engine{checker: checker, global: global, shellTools: st, tools: tools}
}

// IsShellTool reports whether the named tool executes shell commands.
func (e *Engine) IsShellTool(name string) bool {
	_, ok := e.shellTools[name]
	return ok
}

// Decide evaluates one request against this snapshot.
func (e *Engine) Decide(req Request) Outcome {
	input := req.Input

	// 1. Decompose shell input. A failure is recorded, not fatal: deny
	// and confirm matching still run against the raw input, but the
	// allow path is disabled because universal sub-command coverage
	// cannot be asserted over unknown units.
	var subCommands []string
	extractionFailed := false
	isShell := e.IsShellTool(req.ToolName) && !req.TitleOnly
	if isShell {
		subs, err := shell.Split(input)
		if err != nil {
			extractionFailed = true
		} else {
			subCommands = subs
		}
	}

	// 2. Hardcoded safety rules, before any user configuration.
	if msg, blocked := e.checker.Check(input, subCommands); blocked {
		return Outcome{Decision: types.Deny(msg), Source: types.SourceHardcoded}
	}

	// 3. No configured entry for this tool: global default.
	rules, ok := e.tools[req.ToolName]
	if !ok {
		return Outcome{Decision: kindToDecision(e.global, globalDefaultDenyReason), Source: types.SourceGlobalDefault}
	}

	// 4. Malformed configuration fails safe.
	if !rules.allValid() {
		return Outcome{
			Decision: types.Deny("Invalid pattern in configured permission rules"),
			Source:   types.SourceInvalidRule,
		}
	}

	// 5. deny > confirm > allow over the evaluable units.
	units := subCommands
	if len(units) == 0 {
		units = []string{input}
	}
	for _, u := range units {
		if rules.deny.MatchAny(u) {
			return Outcome{Decision: types.Deny("Blocked by configured deny rule"), Source: types.SourceToolRule}
		}
	}
	for _, u := range units {
		if rules.confirm.MatchAny(u) {
			return Outcome{Decision: types.Confirm(), Source: types.SourceToolRule}
		}
	}
	if !extractionFailed && rules.allow.Len() > 0 {
		all := true
		for _, u := range units {
			if !rules.allow.MatchAny(u) {
				all = false
				break
			}
		}
		if all {
			return Outcome{Decision: types.Allow(), Source: types.SourceToolRule}
		}
	}

	// 6. Tool default, then global default.
	if rules.def != nil {
		return Outcome{Decision: kindToDecision(*rules.def, toolDefaultDenyReason), Source: types.SourceToolDefault}
	}
	return Outcome{Decision: kindToDecision(e.global, globalDefaultDenyReason), Source: types.SourceGlobalDefault}
}

// GlobalDefault resolves the legacy path for calls whose tool name is
// unknown: the global default alone, never a silent allow.
func (e *Engine) GlobalDefault() Outcome {
	return Outcome{Decision: kindToDecision(e.global, globalDefaultDenyReason), Source: types.SourceGlobalDefault}
}

const (
	globalDefaultDenyReason = "Blocked by global default: deny"
	toolDefaultDenyReason   = "Blocked by tool default: deny"
)

func kindToDecision(kind types.DecisionKind, denyReason string) types.Decision {
	switch kind {
	case types.DecisionAllow:
		return types.Allow()
	case types.DecisionDeny:
		return types.Deny(denyReason)
	default:
		return types.Confirm()
	}
}
