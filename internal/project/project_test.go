package project

import (
	"path/filepath"
	"testing"

	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/toposort"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(ps []*Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestNewWorkspace_OrdersReferencesFirst(t *testing.T) {
	app := &Project{Name: "app", References: []string{"net", "log"}}
	net := &Project{Name: "net", References: []string{"core"}}
	log := &Project{Name: "log", References: []string{"core"}}
	core := &Project{Name: "core"}

	w, err := NewWorkspace([]*Project{app, net, log, core})
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "net", "log", "app"}, names(w.Projects))

	got, ok := w.Lookup("net")
	require.True(t, ok)
	assert.Same(t, net, got)
}

func TestNewWorkspace_Errors(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		_, err := NewWorkspace([]*Project{{Name: "a"}, {Name: "a"}})
		assert.ErrorIs(t, err, toposort.ErrDuplicateName)
	})
	t.Run("unknown reference", func(t *testing.T) {
		_, err := NewWorkspace([]*Project{{Name: "a", References: []string{"zlib"}}})
		assert.ErrorIs(t, err, toposort.ErrNonexistentDependency)
	})
	t.Run("cycle", func(t *testing.T) {
		_, err := NewWorkspace([]*Project{
			{Name: "a", References: []string{"b"}},
			{Name: "b", References: []string{"a"}},
		})
		assert.ErrorIs(t, err, toposort.ErrCyclic)
	})
}

func TestWorkspace_DependenciesLinkOrder(t *testing.T) {
	app := &Project{Name: "app", References: []string{"net", "log"}}
	w, err := NewWorkspace([]*Project{
		app,
		{Name: "net", References: []string{"core"}},
		{Name: "log", References: []string{"core"}},
		{Name: "core"},
		{Name: "unrelated"},
	})
	require.NoError(t, err)

	// Every library precedes the ones it needs.
	assert.Equal(t, []string{"log", "net", "core"}, names(w.Dependencies(app)))
}

func TestArtifactFileName(t *testing.T) {
	tests := []struct {
		tt   configuration.TargetType
		os   configuration.OperatingSystem
		want string
	}{
		{configuration.Executable, configuration.Windows, "foo.exe"},
		{configuration.Executable, configuration.Linux, "foo"},
		{configuration.StaticLibrary, configuration.Windows, "foo.lib"},
		{configuration.StaticLibrary, configuration.Linux, "libfoo.a"},
		{configuration.DynamicLibrary, configuration.Windows, "foo.dll"},
		{configuration.DynamicLibrary, configuration.Linux, "libfoo.so"},
		{configuration.DynamicLibrary, configuration.Android, "libfoo.so"},
		{configuration.DynamicLibrary, configuration.Mac, "libfoo.dylib"},
		{configuration.HeaderOnly, configuration.Linux, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.tt)+"/"+string(tt.os), func(t *testing.T) {
			assert.Equal(t, tt.want, ArtifactFileName("foo", tt.tt, tt.os))
		})
	}
}

func TestProject_OutputFile(t *testing.T) {
	p := &Project{
		Name:       "core",
		TargetType: configuration.StaticLibrary,
		Configurations: []configuration.Configuration{
			{
				MatchingTargetOperatingSystems: []configuration.OperatingSystem{configuration.Linux},
				TargetType:                     configuration.DynamicLibrary,
			},
			{
				MatchingConfigurationTypes: []configuration.ConfigurationType{configuration.Release},
				OutputDirectory:            "dist",
			},
		},
	}
	build := filepath.Join("/tmp", "build")

	debugWin := configuration.Axes{TargetOS: configuration.Windows, ConfigurationType: configuration.Debug}
	assert.Equal(t, filepath.Join(build, "Debug", "core.lib"), p.OutputFile(debugWin, build))

	releaseLinux := configuration.Axes{TargetOS: configuration.Linux, ConfigurationType: configuration.Release}
	assert.Equal(t, filepath.Join(build, "dist", "libcore.so"), p.OutputFile(releaseLinux, build))
	assert.Equal(t, configuration.DynamicLibrary, p.TargetTypeAt(releaseLinux))

	headers := &Project{Name: "hdr", TargetType: configuration.HeaderOnly}
	assert.Empty(t, headers.OutputFile(debugWin, build))
}

func TestProject_TargetTypePredicates(t *testing.T) {
	onlyDLL := configuration.Configuration{
		MatchingTargetTypes: []configuration.TargetType{configuration.DynamicLibrary},
		CommonFlags:         []string{"-fONLY_FOR_DLL"},
	}
	main := configuration.NewFile("main.c")
	main.Configurations = []configuration.Configuration{{
		MatchingTargetTypes: []configuration.TargetType{configuration.DynamicLibrary},
		Defines:             []configuration.Define{configuration.NewDefine("DLL_MAIN")},
	}}
	linux := configuration.Axes{TargetOS: configuration.Linux, ConfigurationType: configuration.Debug}

	app := &Project{Name: "app", Files: []configuration.File{main}, Configurations: []configuration.Configuration{onlyDLL}}
	assert.Equal(t, configuration.Executable, app.TargetTypeAt(linux))
	assert.Empty(t, app.Merged(linux).CommonFlags)
	c := app.FileConfiguration(main, linux)
	assert.Empty(t, c.CommonFlags)
	assert.Empty(t, c.Defines)

	dll := &Project{Name: "dll", TargetType: configuration.DynamicLibrary, Files: []configuration.File{main}, Configurations: []configuration.Configuration{onlyDLL}}
	assert.Equal(t, []string{"-fONLY_FOR_DLL"}, dll.Merged(linux).CommonFlags)
	c = dll.FileConfiguration(main, linux)
	assert.Equal(t, []string{"-fONLY_FOR_DLL"}, c.CommonFlags)
	require.Len(t, c.Defines, 1)
	assert.Equal(t, "DLL_MAIN", c.Defines[0].Key)

	// an explicit target type in the query wins over the declared one
	asDLL := linux
	asDLL.TargetType = configuration.DynamicLibrary
	assert.Equal(t, []string{"-fONLY_FOR_DLL"}, app.Merged(asDLL).CommonFlags)
}

func TestProject_FragmentChangesTargetType(t *testing.T) {
	p := &Project{
		Name:       "core",
		TargetType: configuration.StaticLibrary,
		Configurations: []configuration.Configuration{
			{
				MatchingTargetOperatingSystems: []configuration.OperatingSystem{configuration.Windows},
				TargetType:                     configuration.DynamicLibrary,
			},
			{
				MatchingTargetTypes: []configuration.TargetType{configuration.DynamicLibrary},
				Defines:             []configuration.Define{configuration.NewDefine("CORE_EXPORTS")},
			},
		},
	}
	win := configuration.Axes{TargetOS: configuration.Windows, ConfigurationType: configuration.Release}
	assert.Equal(t, configuration.DynamicLibrary, p.TargetTypeAt(win))
	require.Len(t, p.Merged(win).Defines, 1)
	assert.Equal(t, filepath.Join("/b", "Release", "core.dll"), p.OutputFile(win, "/b"))

	linux := configuration.Axes{TargetOS: configuration.Linux, ConfigurationType: configuration.Release}
	assert.Equal(t, configuration.StaticLibrary, p.TargetTypeAt(linux))
	assert.Empty(t, p.Merged(linux).Defines)
}

func TestWorkspace_References(t *testing.T) {
	app := &Project{Name: "app", References: []string{"core"}}
	core := &Project{Name: "core", TargetName: "qcore", TargetType: configuration.StaticLibrary}
	w, err := NewWorkspace([]*Project{app, core})
	require.NoError(t, err)

	types := []configuration.ConfigurationType{configuration.Debug, configuration.Release}
	refs := w.References(app, configuration.Axes{TargetOS: configuration.Linux}, types, "/b")
	require.Len(t, refs, 1)
	assert.Same(t, core, refs[0].Project)
	assert.Equal(t, map[configuration.ConfigurationType]string{
		configuration.Debug:   filepath.Join("/b", "Debug", "libqcore.a"),
		configuration.Release: filepath.Join("/b", "Release", "libqcore.a"),
	}, refs[0].OutputFiles)
}

func TestProject_FilesAndFileConfiguration(t *testing.T) {
	main := configuration.NewFile("main.cpp")
	main.Configurations = []configuration.Configuration{{Defines: []configuration.Define{configuration.NewDefine("MAIN")}}}
	win := configuration.NewFile("win32.cpp")

	p := &Project{
		Name:  "app",
		Files: []configuration.File{main},
		Configurations: []configuration.Configuration{
			{Defines: []configuration.Define{configuration.NewDefine("APP")}},
			{
				MatchingTargetOperatingSystems: []configuration.OperatingSystem{configuration.Windows},
				Files:                          []configuration.File{win},
			},
		},
	}

	a := configuration.Axes{TargetOS: configuration.Windows}
	files := p.FilesAt(a)
	require.Len(t, files, 2)
	assert.Equal(t, "win32.cpp", files[1].Path)
	assert.Len(t, p.FilesAt(configuration.Axes{TargetOS: configuration.Linux}), 1)

	c := p.FileConfiguration(main, a)
	require.Len(t, c.Defines, 2)
	assert.Equal(t, "APP", c.Defines[0].Key)
	assert.Equal(t, "MAIN", c.Defines[1].Key)
}
