// Package safety holds the fixed, non-configurable rules that block
// catastrophically dangerous shell operations. The checker runs before
// any user configuration and its denials cannot be overridden by
// configured allow rules or defaults.
package safety

import (
	"github.com/toolgate/toolgate/internal/pattern"
)

// BuiltinRule pairs a compiled pattern with its fixed denial message.
type BuiltinRule struct {
	Rule    pattern.Rule
	Message string
}

// Checker evaluates input against a fixed rule list. Construct once and
// share by reference; it is read-only after construction.
type Checker struct {
	rules []BuiltinRule
}

// builtinRules are the process-wide safety rules. Matching any of these,
// on the whole input or on any decomposed sub-command, is an immediate
// unconditional denial.
var builtinRules = []struct {
	pattern string
	message string
}{
	{
		// rm -rf / and root-level paths such as /usr, /etc, ~, with any
		// flag spelling that includes recursive+force.
		`(^|\s)rm\s+(-[a-zA-Z]*[rR][a-zA-Z]*f[a-zA-Z]*|-[a-zA-Z]*f[a-zA-Z]*[rR][a-zA-Z]*|--recursive\s+--force|--force\s+--recursive)\s+(/|/[a-z]+/?|~|~/|\$HOME)(\s|$)`,
		"Recursive force-deletion of a root-level path is never allowed",
	},
	{
		`(^|\s)mkfs(\.[a-z0-9]+)?(\s|$)`,
		"Formatting a filesystem is never allowed",
	},
	{
		`(^|\s)dd\s+[^|;]*of=/dev/(sd|hd|nvme|disk|vd)`,
		"Raw writes to a block device are never allowed",
	},
	{
		`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;\s*:`,
		"Fork bombs are never allowed",
	},
	{
		`(^|\s)chmod\s+(-[a-zA-Z]*R[a-zA-Z]*\s+)?(0*777|a\+rwx)\s+/(\s|$)`,
		"Making the filesystem root world-writable is never allowed",
	},
	{
		`>\s*/dev/(sd|hd|nvme|vd)[a-z0-9]*(\s|$)`,
		"Redirecting output onto a block device is never allowed",
	},
}

// DefaultChecker builds the checker over the builtin rule list.
func DefaultChecker() *Checker {
	rules := make([]BuiltinRule, 0, len(builtinRules))
	for _, br := range builtinRules {
		rules = append(rules, BuiltinRule{Rule: pattern.Compile(br.pattern), Message: br.message})
	}
	return &Checker{rules: rules}
}

// NewChecker builds a checker over a caller-supplied rule list. Used by
// tests that substitute rule sets.
func NewChecker(rules []BuiltinRule) *Checker {
	return &Checker{rules: rules}
}

// Check returns the fixed denial message for the first rule matched by
// the input or any sub-command, and whether one matched. Sub-commands
// are only meaningful for shell-executing tools; pass nil otherwise.
func (c *Checker) Check(input string, subCommands []string) (string, bool) {
	for _, br := range c.rules {
		if br.Rule.Match(input) {
			return br.Message, true
		}
		for _, sub := range subCommands {
			if br.Rule.Match(sub) {
				return br.Message, true
			}
		}
	}
	return "", false
}
