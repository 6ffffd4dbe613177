package gen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const src = "/src"

func fixtureProjects() []*project.Project {
	core := &project.Project{
		Name:       "core",
		TargetType: configuration.StaticLibrary,
		Directory:  src + "/core",
		Files:      []configuration.File{configuration.NewFile(src + "/core/a.c")},
		Configurations: []configuration.Configuration{
			{Libs: []string{"m"}, Options: map[string]string{OptionCStandard: "11"}},
			{
				MatchingConfigurationTypes: []configuration.ConfigurationType{configuration.Release},
				Files:                      []configuration.File{configuration.NewFile(src + "/core/fast/b.c")},
			},
		},
	}
	app := &project.Project{
		Name:       "app",
		Directory:  src + "/app",
		VirtualDir: "apps/tools",
		References: []string{"core"},
		Files: []configuration.File{
			configuration.NewFile(src + "/app/main.cpp"),
			configuration.NewFile(src + "/app/app.h"),
		},
		Configurations: []configuration.Configuration{
			{Defines: []configuration.Define{configuration.NewDefine("APP=1")}},
			{
				MatchingConfigurationTypes: []configuration.ConfigurationType{configuration.Release},
				Defines:                    []configuration.Define{configuration.NewDefine("FAST")},
			},
		},
	}
	return []*project.Project{app, core}
}

func addTargets(t *testing.T, g Generator, s Settings) {
	t.Helper()
	w, err := project.NewWorkspace(fixtureProjects())
	require.NoError(t, err)
	for _, p := range w.Projects {
		g.AddTarget(Target{
			Project:      p,
			References:   w.References(p, s.Axes, s.Configurations, s.BuildDir),
			Dependencies: w.Dependencies(p),
		})
	}
}

func linuxSettings(tc configuration.Toolchain, ct configuration.ConfigurationType) Settings {
	return Settings{
		Name:      "demo",
		SourceDir: src,
		BuildDir:  src + "/build",
		Axes: configuration.Axes{
			HostOS:            configuration.Linux,
			HostArch:          configuration.X64,
			TargetOS:          configuration.Linux,
			TargetArch:        configuration.X64,
			Toolchain:         tc,
			Compiler:          configuration.GCC,
			ConfigurationType: ct,
		},
		Configurations: []configuration.ConfigurationType{ct},
		Jobs:           4,
	}
}

func generateOne(t *testing.T, g Generator) string {
	t.Helper()
	files, err := g.Generate()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, g.BuildFile(), files[0].Path)
	return string(files[0].Content)
}

func TestNew_SelectsBackendByToolchain(t *testing.T) {
	g, err := New(linuxSettings(configuration.Ninja, configuration.Debug))
	require.NoError(t, err)
	assert.IsType(t, &NinjaGen{}, g)

	g, err = New(linuxSettings(configuration.Script, configuration.Debug))
	require.NoError(t, err)
	assert.IsType(t, &ScriptGen{}, g)

	_, err = New(linuxSettings("xcode", configuration.Debug))
	assert.ErrorIs(t, err, ErrUnsupportedToolchain)
}

func TestNinjaGen_Debug(t *testing.T) {
	s := linuxSettings(configuration.Ninja, configuration.Debug)
	g := NewNinjaGen(s)
	g.SetCompiler("gcc", "g++", "ar", nil)
	addTargets(t, g, s)

	out := generateOne(t, g)
	assert.Equal(t, filepath.Join(s.BuildDir, "build.ninja"), g.BuildFile())

	assert.Contains(t, out, "cxx = g++\n")
	assert.Contains(t, out, "build /src/build/obj/core/a.c.o: cc /src/core/a.c\n  flags = -g -O0 -std=c11\n")
	assert.NotContains(t, out, "b.c")
	assert.Contains(t, out, "build /src/build/Debug/libcore.a: ar /src/build/obj/core/a.c.o\n")
	assert.Contains(t, out, "build /src/build/Debug/app: link /src/build/obj/app/main.cpp.o | /src/build/Debug/libcore.a\n")
	assert.Contains(t, out, "  ld = g++\n")
	assert.Contains(t, out, "  post = /src/build/Debug/libcore.a -lm\n")
	assert.Contains(t, out, "-DAPP=1")
	assert.NotContains(t, out, "-DFAST")
	assert.NotContains(t, out, "app.h")
	assert.True(t, strings.HasSuffix(out, "default core app\n"))
}

func TestNinjaGen_ReleaseAddsFragments(t *testing.T) {
	s := linuxSettings(configuration.Ninja, configuration.Release)
	s.LinkTimeOpt = true
	g := NewNinjaGen(s)
	addTargets(t, g, s)

	out := generateOne(t, g)
	assert.Contains(t, out, "build /src/build/obj/core/fast/b.c.o: cc /src/core/fast/b.c\n")
	assert.Contains(t, out, "-O3 -DNDEBUG -flto")
	assert.Contains(t, out, "-DAPP=1 -DFAST")
	assert.Contains(t, out, "build /src/build/Release/libcore.a: ar /src/build/obj/core/a.c.o /src/build/obj/core/fast/b.c.o\n")
}

func TestScriptGen(t *testing.T) {
	s := linuxSettings(configuration.Script, configuration.Release)
	s.Jobs = 1
	g := NewScriptGen(s)
	g.SetCompiler("gcc", "g++", "ar", []string{"--target=x86_64-linux-gnu"})
	addTargets(t, g, s)

	out := generateOne(t, g)
	assert.True(t, strings.HasPrefix(out, "#!/bin/sh\n"))
	assert.Contains(t, out, "CC=gcc\nCXX=g++\nAR=ar\n")
	assert.Contains(t, out, "mkdir -p /src/build/Release /src/build/obj/core /src/build/obj/core/fast\n")
	assert.Contains(t, out, `spawn 'CC /src/build/obj/core/a.c.o' "$CC" --target=x86_64-linux-gnu -O3 -DNDEBUG -std=c11 -c /src/core/a.c -o /src/build/obj/core/a.c.o`+"\njoin\n")
	assert.Contains(t, out, `"$AR" rcs /src/build/Release/libcore.a /src/build/obj/core/a.c.o /src/build/obj/core/fast/b.c.o`)
	assert.Contains(t, out, `"$CXX" --target=x86_64-linux-gnu -o /src/build/Release/app /src/build/obj/app/main.cpp.o /src/build/Release/libcore.a -lm`)

	// core before app
	assert.Less(t, strings.Index(out, "# core"), strings.Index(out, "# app"))
}

func TestScriptGen_BatchesByJobs(t *testing.T) {
	s := linuxSettings(configuration.Script, configuration.Release)
	s.Jobs = 2
	g := NewScriptGen(s)
	addTargets(t, g, s)

	out := generateOne(t, g)
	// two core sources share a batch, the single app source gets its own
	assert.Equal(t, 2, strings.Count(out, "\njoin\n"))
}

func vsSettings() Settings {
	return Settings{
		Name:      "demo",
		SourceDir: src,
		BuildDir:  src + "/build",
		Axes: configuration.Axes{
			HostOS:         configuration.Windows,
			HostArch:       configuration.X64,
			TargetOS:       configuration.Windows,
			TargetArch:     configuration.X64,
			WindowsRuntime: configuration.Win32,
			Toolchain:      configuration.VisualStudio,
			Compiler:       configuration.VisualCpp,
			CLibrary:       configuration.CLibrary{Type: configuration.VisualCRuntime, Form: configuration.Dynamic},
		},
		Configurations: []configuration.ConfigurationType{configuration.Debug, configuration.Release},
	}
}

func generateVS(t *testing.T) map[string]string {
	t.Helper()
	s := vsSettings()
	g := NewVS2022Gen(s)
	addTargets(t, g, s)
	files, err := g.Generate()
	require.NoError(t, err)

	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Path] = string(f.Content)
	}
	return out
}

func TestVS2022Gen_Files(t *testing.T) {
	out := generateVS(t)
	assert.Len(t, out, 5)
	for _, path := range []string{
		"/src/build/core/core.vcxproj",
		"/src/build/core/core.vcxproj.filters",
		"/src/build/app/app.vcxproj",
		"/src/build/app/app.vcxproj.filters",
		"/src/build/demo.sln",
	} {
		assert.Contains(t, out, path)
	}
}

func TestVS2022Gen_Deterministic(t *testing.T) {
	assert.Equal(t, generateVS(t), generateVS(t))
}

func TestVS2022Gen_Project(t *testing.T) {
	out := generateVS(t)
	app := out["/src/build/app/app.vcxproj"]
	core := out["/src/build/core/core.vcxproj"]

	assert.Contains(t, app, "<ConfigurationType>Application</ConfigurationType>")
	assert.Contains(t, core, "<ConfigurationType>StaticLibrary</ConfigurationType>")
	assert.Contains(t, app, "<PlatformToolset>v143</PlatformToolset>")
	assert.Contains(t, app, "<PreprocessorDefinitions>WIN32;_WINDOWS;_DEBUG;APP=1;%(PreprocessorDefinitions)</PreprocessorDefinitions>")
	assert.Contains(t, app, "<PreprocessorDefinitions>WIN32;_WINDOWS;NDEBUG;APP=1;FAST;%(PreprocessorDefinitions)</PreprocessorDefinitions>")
	assert.Contains(t, app, "<RuntimeLibrary>MultiThreadedDebugDLL</RuntimeLibrary>")
	assert.Contains(t, app, "<RuntimeLibrary>MultiThreadedDLL</RuntimeLibrary>")
	assert.Contains(t, app, "<AdditionalDependencies>m.lib;%(AdditionalDependencies)</AdditionalDependencies>")
	assert.Contains(t, app, `<ClCompile Include="..\..\app\main.cpp">`)
	assert.Contains(t, app, `<ClInclude Include="..\..\app\app.h">`)
	assert.Contains(t, app, `<ProjectReference Include="..\core\core.vcxproj">`)
	assert.Contains(t, app, "<Project>{"+stableGuid("project", "core")+"}</Project>")
	assert.Contains(t, core, "<ProjectGuid>{"+stableGuid("project", "core")+"}</ProjectGuid>")
	assert.Contains(t, core, "<LanguageStandard_C>stdc11</LanguageStandard_C>")
	assert.NotContains(t, core, "<Link>")

	// b.c only belongs to Release
	assert.Contains(t, core, `<ClCompile Include="..\..\core\fast\b.c">`)
	assert.Contains(t, core, "Debug|x64")
	assert.Contains(t, core, "<ExcludedFromBuild Condition=")
	assert.Equal(t, 1, strings.Count(core, "<ExcludedFromBuild "))
}

func TestVS2022Gen_Filters(t *testing.T) {
	filters := generateVS(t)["/src/build/core/core.vcxproj.filters"]
	assert.Contains(t, filters, `<Filter Include="fast">`)
	assert.Contains(t, filters, "<Filter>fast</Filter>")
}

func TestVS2022Gen_Solution(t *testing.T) {
	sln := generateVS(t)["/src/build/demo.sln"]
	appGuid := stableGuid("project", "app")
	toolsGuid := stableGuid("folder", "apps/tools")
	appsGuid := stableGuid("folder", "apps")

	assert.True(t, strings.HasPrefix(sln, "Microsoft Visual Studio Solution File, Format Version 12.00\n"))
	assert.Contains(t, sln, `"core", "core\core.vcxproj", "{`+stableGuid("project", "core")+`}"`)
	assert.Contains(t, sln, `"tools", "tools", "{`+toolsGuid+`}"`)
	assert.Contains(t, sln, "\t\tRelease|x64 = Release|x64\n")
	assert.Contains(t, sln, "\t\t{"+appGuid+"}.Debug|x64.Build.0 = Debug|x64\n")
	assert.Contains(t, sln, "\t\t{"+appGuid+"} = {"+toolsGuid+"}\n")
	assert.Contains(t, sln, "\t\t{"+toolsGuid+"} = {"+appsGuid+"}\n")
}

func TestVS2022Gen_ProjectIdOverridesGuid(t *testing.T) {
	s := vsSettings()
	g := NewVS2022Gen(s)
	g.AddTarget(Target{Project: &project.Project{Name: "x", Id: "{1b4e28ba-2fa1-11d2-883f-0016d3cca427}", Directory: src}})
	files, err := g.Generate()
	require.NoError(t, err)
	assert.Contains(t, string(files[0].Content), "<ProjectGuid>{1B4E28BA-2FA1-11D2-883F-0016D3CCA427}</ProjectGuid>")
}

func TestPlatform(t *testing.T) {
	assert.Equal(t, "Win32", Platform(configuration.X86))
	assert.Equal(t, "x64", Platform(configuration.X64))
	assert.Equal(t, "ARM64", Platform(configuration.ARM64))
	assert.Equal(t, "ARM", Platform(configuration.ARMv7a))
}

func noColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestWriteFiles_SkipsUnchanged(t *testing.T) {
	noColor(t)
	dir := t.TempDir()
	same := filepath.Join(dir, "same.txt")
	require.NoError(t, os.WriteFile(same, []byte("a\n"), 0644))

	files := []File{
		{Path: same, Content: []byte("a\n")},
		{Path: filepath.Join(dir, "sub", "new.txt"), Content: []byte("b\n")},
	}
	results, err := WriteFiles(t.Context(), files, true, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Changed)
	assert.True(t, results[1].Changed)
	assert.Equal(t, "+b\n", results[1].Diff)

	data, err := os.ReadFile(files[1].Path)
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(data))
}

func TestLineDiff(t *testing.T) {
	noColor(t)
	got := LineDiff("one\ntwo\nthree\n", "one\n2\nthree\n")
	assert.Equal(t, "-two\n+2\n", got)
}
