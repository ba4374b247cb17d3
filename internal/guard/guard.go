// Package guard is the file-write post-check: after the decision engine
// allows a write, the guard can still force confirmation or denial when
// the target resolves into the agent's own trust boundary. An explicit
// allow rule for a file-write tool must never silently grant write
// access to trusted configuration.
package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/toolgate/toolgate/pkg/types"
)

// Config describes the trusted locations.
type Config struct {
	// WorkDir anchors relative targets and the local settings dir.
	WorkDir string

	// LocalSettingsDir is the project-scoped trusted settings directory
	// name (relative), e.g. ".toolgate". Writes under any directory with
	// this name inside WorkDir require confirmation.
	LocalSettingsDir string

	// GlobalConfigDir is the absolute globally-scoped trusted
	// configuration directory. Writes under it are denied outright.
	GlobalConfigDir string

	// ProtectedPaths are extra glob patterns (separator '/') relative to
	// WorkDir whose matches require confirmation.
	ProtectedPaths []string
}

// Guard holds the compiled trusted-location set.
type Guard struct {
	workDir   string
	localName string
	globalDir string
	protected []glob.Glob
}

// New compiles the configuration. Glob syntax errors fail construction;
// unlike user pattern rules these are operator-owned settings.
func New(cfg Config) (*Guard, error) {
	if cfg.LocalSettingsDir == "" {
		cfg.LocalSettingsDir = ".toolgate"
	}
	g := &Guard{
		workDir:   filepath.Clean(cfg.WorkDir),
		localName: cfg.LocalSettingsDir,
		globalDir: filepath.Clean(cfg.GlobalConfigDir),
	}
	// Anchor comparisons on resolved directories so symlinked workdirs
	// (tmpfs, /var on darwin) compare consistently with resolved targets.
	if resolved, err := filepath.EvalSymlinks(g.workDir); err == nil {
		g.workDir = resolved
	}
	if resolved, err := filepath.EvalSymlinks(g.globalDir); err == nil {
		g.globalDir = resolved
	}
	for _, pat := range cfg.ProtectedPaths {
		compiled, err := glob.Compile(pat, '/')
		if err != nil {
			return nil, fmt.Errorf("compile protected path %q: %w", pat, err)
		}
		g.protected = append(g.protected, compiled)
	}
	return g, nil
}

// Check applies the guard to a file-write decision. Deny and confirm
// pass through unchanged; an allow is downgraded when the resolved
// target is security-sensitive.
func (g *Guard) Check(dec types.Decision, targetPath string) types.Decision {
	if dec.Kind != types.DecisionAllow {
		return dec
	}

	resolved := g.resolve(targetPath)

	if g.globalDir != "" && g.globalDir != "." && within(g.globalDir, resolved) {
		return types.Deny("Writes to the global trusted configuration directory are not permitted")
	}
	if g.inLocalSettings(resolved) {
		return types.Confirm()
	}
	if rel, ok := g.relToWorkDir(resolved); ok {
		for _, p := range g.protected {
			if p.Match(rel) {
				return types.Confirm()
			}
		}
	}
	return dec
}

// resolve absolutizes the target and follows symlinks through its
// deepest existing ancestor, so a link pointing into a trusted
// directory cannot dodge the check.
func (g *Guard) resolve(target string) string {
	p := target
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.workDir, p)
	}
	p = filepath.Clean(p)

	// The target itself usually does not exist yet; walk up to the
	// deepest ancestor that does, resolve that, and re-attach the rest.
	suffix := ""
	dir := p
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Clean(filepath.Join(resolved, suffix))
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return p
		}
		suffix = filepath.Join(filepath.Base(dir), suffix)
		dir = parent
	}
}

func (g *Guard) inLocalSettings(resolved string) bool {
	rel, ok := g.relToWorkDir(resolved)
	if !ok {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if part == g.localName {
			return true
		}
	}
	return false
}

// relToWorkDir returns the slash-separated path of p relative to the
// workdir, or false when p lies outside it.
func (g *Guard) relToWorkDir(p string) (string, bool) {
	rel, err := filepath.Rel(g.workDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// DefaultGlobalConfigDir returns the per-user toolgate configuration
// directory, the globally-scoped trust boundary.
func DefaultGlobalConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "toolgate")
}
