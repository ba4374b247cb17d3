package guard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/pkg/types"
)

func newTestGuard(t *testing.T, work string, extra ...string) *Guard {
	t.Helper()
	g, err := New(Config{
		WorkDir:          work,
		LocalSettingsDir: ".toolgate",
		GlobalConfigDir:  filepath.Join(work, "globalcfg"),
		ProtectedPaths:   extra,
	})
	require.NoError(t, err)
	return g
}

func TestAllowIntoLocalSettingsForcesConfirm(t *testing.T) {
	work := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(work, ".toolgate"), 0o755))
	g := newTestGuard(t, work)

	dec := g.Check(types.Allow(), ".toolgate/settings.yaml")
	require.Equal(t, types.DecisionConfirm, dec.Kind)

	// Nested project settings dirs are trusted too.
	require.NoError(t, os.MkdirAll(filepath.Join(work, "sub", ".toolgate"), 0o755))
	dec = g.Check(types.Allow(), "sub/.toolgate/settings.yaml")
	require.Equal(t, types.DecisionConfirm, dec.Kind)
}

func TestAllowIntoGlobalConfigIsDenied(t *testing.T) {
	work := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(work, "globalcfg"), 0o755))
	g := newTestGuard(t, work)

	dec := g.Check(types.Allow(), filepath.Join(work, "globalcfg", "config.yaml"))
	require.Equal(t, types.DecisionDeny, dec.Kind)
	require.NotEmpty(t, dec.Reason)
}

func TestOrdinaryWritePassesThrough(t *testing.T) {
	work := t.TempDir()
	g := newTestGuard(t, work)

	dec := g.Check(types.Allow(), "src/main.go")
	require.Equal(t, types.DecisionAllow, dec.Kind)
}

func TestDenyAndConfirmPassThroughUnchanged(t *testing.T) {
	work := t.TempDir()
	g := newTestGuard(t, work)

	deny := types.Deny("blocked")
	require.Equal(t, deny, g.Check(deny, ".toolgate/settings.yaml"))
	require.Equal(t, types.Confirm(), g.Check(types.Confirm(), "src/main.go"))
}

func TestSymlinkIntoTrustedDirIsCaught(t *testing.T) {
	work := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(work, ".toolgate"), 0o755))
	link := filepath.Join(work, "innocent")
	require.NoError(t, os.Symlink(filepath.Join(work, ".toolgate"), link))
	g := newTestGuard(t, work)

	dec := g.Check(types.Allow(), "innocent/settings.yaml")
	require.Equal(t, types.DecisionConfirm, dec.Kind)
}

func TestProtectedPathPatterns(t *testing.T) {
	work := t.TempDir()
	g := newTestGuard(t, work, "secrets/**", ".env")

	require.Equal(t, types.DecisionConfirm, g.Check(types.Allow(), "secrets/prod/key.pem").Kind)
	require.Equal(t, types.DecisionConfirm, g.Check(types.Allow(), ".env").Kind)
	require.Equal(t, types.DecisionAllow, g.Check(types.Allow(), "README.md").Kind)
}

func TestTargetOutsideWorkDir(t *testing.T) {
	work := t.TempDir()
	other := t.TempDir()
	g := newTestGuard(t, work)

	// Outside the workdir: neither local-settings nor protected-path
	// checks apply (the global dir check still would).
	dec := g.Check(types.Allow(), filepath.Join(other, "file.txt"))
	require.Equal(t, types.DecisionAllow, dec.Kind)
}

func TestInvalidProtectedGlobFailsConstruction(t *testing.T) {
	_, err := New(Config{WorkDir: t.TempDir(), ProtectedPaths: []string{"[unclosed"}})
	require.Error(t, err)
}
