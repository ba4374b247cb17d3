// Package shell decomposes compound shell command strings into their
// independently-runnable sub-commands. It is a parser only: nothing is
// executed, expanded, or resolved. When the syntax cannot be decomposed
// with confidence the package reports ErrExtractionFailed rather than
// guessing a partial split; callers treat that conservatively.
package shell

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExtractionFailed means the command could not be confidently split
// into sub-commands. It does not mean the command is empty.
var ErrExtractionFailed = errors.New("sub-command extraction failed")

// Split returns the ordered sub-commands of a compound command, split on
// chaining and piping operators (&&, ||, ;, |, &, newline) at the top
// syntactic level. Quoted text, $(...) and backtick substitutions, and
// (...) subshell groups stay inside a single sub-command.
func Split(command string) ([]string, error) {
	segs, err := split(command)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("empty segment between operators: %w", ErrExtractionFailed)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no runnable command: %w", ErrExtractionFailed)
	}
	return out, nil
}

func split(command string) ([]string, error) {
	var (
		segs    []string
		cur     strings.Builder
		depth   int  // ( ... ) and $( ... ) nesting
		tick    bool // inside `...`
		sq, dq  bool // inside '...' / "..."
		lastOp  bool // previous top-level token was an operator
		sawText bool
	)

	flush := func() error {
		if strings.TrimSpace(cur.String()) == "" {
			return fmt.Errorf("operator with no command before it: %w", ErrExtractionFailed)
		}
		segs = append(segs, cur.String())
		cur.Reset()
		return nil
	}

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		// Backslash escapes the next character everywhere except in
		// single quotes, where it is literal.
		if ch == '\\' && !sq {
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("trailing backslash: %w", ErrExtractionFailed)
			}
			cur.WriteRune(ch)
			i++
			cur.WriteRune(runes[i])
			sawText = true
			continue
		}

		switch {
		case sq:
			cur.WriteRune(ch)
			if ch == '\'' {
				sq = false
			}
			continue
		case dq:
			cur.WriteRune(ch)
			if ch == '"' {
				dq = false
			}
			continue
		case tick:
			cur.WriteRune(ch)
			if ch == '`' {
				tick = false
			}
			continue
		}

		switch ch {
		case '\'':
			sq = true
			cur.WriteRune(ch)
			sawText = true
			continue
		case '"':
			dq = true
			cur.WriteRune(ch)
			sawText = true
			continue
		case '`':
			tick = true
			cur.WriteRune(ch)
			sawText = true
			continue
		case '(':
			depth++
			cur.WriteRune(ch)
			sawText = true
			continue
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parenthesis: %w", ErrExtractionFailed)
			}
			cur.WriteRune(ch)
			continue
		}

		if depth > 0 {
			cur.WriteRune(ch)
			continue
		}

		// Top-level operators.
		switch ch {
		case '&':
			double := i+1 < len(runes) && runes[i+1] == '&'
			if err := flush(); err != nil {
				return nil, err
			}
			if double {
				i++
				lastOp = true // && requires a right-hand side
			} else {
				lastOp = false // background & terminates a command like ;
			}
			continue
		case '|':
			if err := flush(); err != nil {
				return nil, err
			}
			if i+1 < len(runes) && runes[i+1] == '|' {
				i++
			}
			lastOp = true
			continue
		case ';', '\n':
			// A run of separators after a command is tolerated the way
			// shells tolerate trailing semicolons and newlines.
			if strings.TrimSpace(cur.String()) == "" && len(segs) > 0 && !lastOp {
				continue
			}
			if err := flush(); err != nil {
				return nil, err
			}
			lastOp = false
			continue
		}

		if !isSpace(ch) {
			sawText = true
			lastOp = false
		}
		cur.WriteRune(ch)
	}

	if sq || dq || tick {
		return nil, fmt.Errorf("unbalanced quote: %w", ErrExtractionFailed)
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parenthesis: %w", ErrExtractionFailed)
	}
	if !sawText {
		return nil, fmt.Errorf("no runnable command: %w", ErrExtractionFailed)
	}
	if strings.TrimSpace(cur.String()) == "" {
		if lastOp {
			return nil, fmt.Errorf("dangling operator: %w", ErrExtractionFailed)
		}
		return segs, nil
	}
	segs = append(segs, cur.String())
	return segs, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}
