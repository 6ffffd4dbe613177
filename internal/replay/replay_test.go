package replay

import (
	"strings"
	"testing"

	"github.com/qobs-build/qgen/internal/variable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var overrides = []variable.Override{
	{Name: "Toolchain", Value: "Script", Options: []string{"Ninja", "Script"}},
	{Name: "ExtraDefines", Value: ""},
	{Name: "BuildDirectory", Value: "/tmp/it's here"},
}

func TestRender_Sh(t *testing.T) {
	got := Render(Sh, overrides)
	assert.Equal(t, "#!/bin/sh\n"+
		"# Toolchain: Ninja Script\n"+
		"export Toolchain='Script'\n"+
		"export ExtraDefines='_EMPTY_'\n"+
		"export BuildDirectory='/tmp/it'\\''s here'\n"+
		"qgen --quiet \"$0\" \"$@\"\n", got)
}

func TestRender_Cmd(t *testing.T) {
	got := Render(Cmd, overrides[:2])
	assert.Equal(t, "@echo off\r\nsetlocal\r\n"+
		"rem Toolchain: Ninja Script\r\n"+
		"set \"Toolchain=Script\"\r\n"+
		"set \"ExtraDefines=_EMPTY_\"\r\n"+
		"qgen --quiet \"%~f0\" %*\r\n", got)
}

func TestRender_CmdDoublesPercent(t *testing.T) {
	got := Render(Cmd, []variable.Override{{Name: "ExtraDefines", Value: "RATIO=50% HOME=%PATH%"}})
	assert.Contains(t, got, "set \"ExtraDefines=RATIO=50%% HOME=%%PATH%%\"\r\n")
}

func TestRender_NoOverrides(t *testing.T) {
	assert.Equal(t, "#!/bin/sh\nqgen --quiet \"$0\" \"$@\"\n", Render(Sh, nil))
}

func TestParse_RoundTrip(t *testing.T) {
	for _, d := range []Dialect{Sh, Cmd} {
		t.Run(string(d), func(t *testing.T) {
			in := overrides
			if d == Cmd {
				in = overrides[:2]
			}
			vars, err := Parse(strings.NewReader(Render(d, in)))
			require.NoError(t, err)

			want := variable.MapSource{"Toolchain": "Script", "ExtraDefines": variable.EmptySentinel}
			if d == Sh {
				want["BuildDirectory"] = "/tmp/it's here"
			}
			assert.Equal(t, want, vars)
		})
	}
}

func TestParse_RoundTripPercent(t *testing.T) {
	in := []variable.Override{
		{Name: "ExtraDefines", Value: "RATIO=50%"},
		{Name: "BuildDirectory", Value: "%PATH%\\out"},
	}
	for _, d := range []Dialect{Sh, Cmd} {
		t.Run(string(d), func(t *testing.T) {
			vars, err := Parse(strings.NewReader(Render(d, in)))
			require.NoError(t, err)
			assert.Equal(t, variable.MapSource{
				"ExtraDefines":   "RATIO=50%",
				"BuildDirectory": `%PATH%\out`,
			}, vars)
		})
	}
}

func TestParse_SkipsNoise(t *testing.T) {
	script := `#!/bin/sh
# Jobs=3
rem Jobs=4
:: Jobs=5
echo hello
Jobs=2
1BAD=x
export Compiler="clang"
`
	vars, err := Parse(strings.NewReader(script))
	require.NoError(t, err)
	assert.Equal(t, variable.MapSource{"Jobs": "2", "Compiler": "clang"}, vars)
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("cmd")
	require.NoError(t, err)
	assert.Equal(t, Cmd, d)
	assert.Equal(t, "qgen.cmd", d.FileName())

	_, err = ParseDialect("fish")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}
