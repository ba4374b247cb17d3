// Package pattern compiles and holds regular-expression rule sets.
// Compilation is the only place regex syntax is interpreted; everything
// downstream matches against pre-compiled rules. An unparseable pattern
// yields a rule that is permanently invalid and never matches, so callers
// can treat "all configured patterns" uniformly and turn invalidity into
// a deny instead of a crash.
package pattern

import "regexp"

// Rule is one compiled pattern. Immutable once compiled.
type Rule struct {
	raw string
	re  *regexp.Regexp
}

// Compile never fails: a pattern that does not parse produces an invalid
// rule rather than an error.
func Compile(raw string) Rule {
	re, err := regexp.Compile(raw)
	if err != nil {
		return Rule{raw: raw}
	}
	return Rule{raw: raw, re: re}
}

// Valid reports whether the pattern parsed.
func (r Rule) Valid() bool { return r.re != nil }

// Match reports whether s matches. Invalid rules never match.
func (r Rule) Match(s string) bool {
	if r.re == nil {
		return false
	}
	return r.re.MatchString(s)
}

// String returns the original pattern text.
func (r Rule) String() string { return r.raw }

// RuleSet is an ordered list of compiled rules.
type RuleSet struct {
	rules []Rule
}

// CompileSet compiles each pattern independently. Invalid patterns are
// kept in place so AllValid can report them.
func CompileSet(patterns []string) RuleSet {
	rs := RuleSet{rules: make([]Rule, 0, len(patterns))}
	for _, p := range patterns {
		rs.rules = append(rs.rules, Compile(p))
	}
	return rs
}

// MatchAny reports whether any valid rule in the set matches s.
func (rs RuleSet) MatchAny(s string) bool {
	for _, r := range rs.rules {
		if r.Match(s) {
			return true
		}
	}
	return false
}

// AllValid reports whether every rule in the set compiled.
func (rs RuleSet) AllValid() bool {
	for _, r := range rs.rules {
		if !r.Valid() {
			return false
		}
	}
	return true
}

// Len returns the number of rules in the set.
func (rs RuleSet) Len() int { return len(rs.rules) }

// Rules returns a copy of the compiled rules.
func (rs RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}
