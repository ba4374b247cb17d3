package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileValid(t *testing.T) {
	r := Compile(`^rm `)
	require.True(t, r.Valid())
	require.True(t, r.Match("rm -rf build"))
	require.False(t, r.Match("echo rm"))
	require.Equal(t, `^rm `, r.String())
}

func TestCompileInvalidNeverMatches(t *testing.T) {
	r := Compile(`[unclosed`)
	require.False(t, r.Valid())
	require.False(t, r.Match("[unclosed"))
	require.False(t, r.Match(""))
}

func TestCompileSet(t *testing.T) {
	rs := CompileSet([]string{`^git `, `^cargo `})
	require.Equal(t, 2, rs.Len())
	require.True(t, rs.AllValid())
	require.True(t, rs.MatchAny("git status"))
	require.True(t, rs.MatchAny("cargo build"))
	require.False(t, rs.MatchAny("rm -rf /"))
}

func TestCompileSetInvalidMember(t *testing.T) {
	rs := CompileSet([]string{`^ls`, `(`})
	require.False(t, rs.AllValid())
	// Valid members still match; the invalid one never does.
	require.True(t, rs.MatchAny("ls -la"))
}

func TestEmptySet(t *testing.T) {
	rs := CompileSet(nil)
	require.Equal(t, 0, rs.Len())
	require.True(t, rs.AllValid())
	require.False(t, rs.MatchAny("anything"))
}
