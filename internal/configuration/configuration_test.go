package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defines(texts ...string) []Define {
	out := make([]Define, len(texts))
	for i, t := range texts {
		out[i] = NewDefine(t)
	}
	return out
}

func TestMerged_Additive(t *testing.T) {
	fragments := []Configuration{
		{MatchingTargetOperatingSystems: []OperatingSystem{Linux}, Defines: defines("A=1")},
		{Defines: defines("B=2")},
	}

	linux := Merged(fragments, Axes{TargetOS: Linux})
	assert.Equal(t, defines("A=1", "B=2"), linux.Defines)

	windows := Merged(fragments, Axes{TargetOS: Windows})
	assert.Equal(t, defines("B=2"), windows.Defines)
}

func TestMerged_ScalarsLastMatchWins(t *testing.T) {
	fragments := []Configuration{
		{TargetType: Executable, Libs: []string{"m"}, OutputDirectory: "bin"},
		{MatchingConfigurationTypes: []ConfigurationType{Release}, TargetType: DynamicLibrary},
		{TargetType: StaticLibrary, Libs: []string{"pthread", "m"}},
	}

	m := Merged(fragments, Axes{ConfigurationType: Debug})
	assert.Equal(t, StaticLibrary, m.TargetType)
	assert.Equal(t, "bin", m.OutputDirectory, "empty scalars do not override")
	assert.Equal(t, []string{"m", "pthread", "m"}, m.Libs, "repetition is preserved")
}

func TestMerged_Options(t *testing.T) {
	fragments := []Configuration{
		{Options: map[string]string{"warnings": "all", "std": "c++17"}},
		{MatchingCompilers: []Compiler{VisualCpp}, Options: map[string]string{"std": "c++20"}},
	}

	assert.Equal(t, map[string]string{"warnings": "all", "std": "c++20"}, Merged(fragments, Axes{Compiler: VisualCpp}).Options)
	assert.Equal(t, map[string]string{"warnings": "all", "std": "c++17"}, Merged(fragments, Axes{Compiler: GCC}).Options)
	assert.Equal(t, "all", fragments[0].Options["warnings"], "inputs are not modified")
	assert.Equal(t, "c++17", fragments[0].Options["std"])
}

func TestMatches_Wildcards(t *testing.T) {
	wildcard := Configuration{}
	for _, os := range KnownOperatingSystems {
		assert.True(t, Matches(wildcard, Axes{TargetOS: os}))
	}
	assert.True(t, Matches(wildcard, Axes{}))

	linuxOnly := Configuration{MatchingTargetOperatingSystems: []OperatingSystem{Linux}}
	assert.True(t, Matches(linuxOnly, Axes{}), "unspecified axis matches a restricted fragment")
	assert.True(t, Matches(linuxOnly, Axes{TargetOS: Linux}))
	assert.False(t, Matches(linuxOnly, Axes{TargetOS: Mac}))
}

func TestMatches_AllAxesConjoined(t *testing.T) {
	c := Configuration{
		MatchingTargetOperatingSystems: []OperatingSystem{Windows},
		MatchingTargetArchitectures:    []Architecture{X64, ARM64},
		MatchingCLibraries:             []CLibrary{{Type: VisualCRuntime, Form: Static}},
	}

	assert.True(t, Matches(c, Axes{TargetOS: Windows, TargetArch: ARM64}))
	assert.False(t, Matches(c, Axes{TargetOS: Windows, TargetArch: X86}))
	assert.True(t, Matches(c, Axes{CLibrary: CLibrary{Type: VisualCRuntime, Form: Static}}))
	assert.False(t, Matches(c, Axes{CLibrary: CLibrary{Type: VisualCRuntime, Form: Dynamic}}))
}

func TestMatches_LibraryWithoutForm(t *testing.T) {
	var glibc CLibrary
	require.NoError(t, glibc.UnmarshalText([]byte("glibc")))
	c := Configuration{MatchingCLibraries: []CLibrary{glibc}}
	assert.True(t, Matches(c, Axes{CLibrary: CLibrary{Type: Glibc, Form: Dynamic}}))
	assert.True(t, Matches(c, Axes{CLibrary: CLibrary{Type: Glibc, Form: Static}}))
	assert.False(t, Matches(c, Axes{CLibrary: CLibrary{Type: Musl, Form: Dynamic}}))

	var cpp CppLibrary
	require.NoError(t, cpp.UnmarshalText([]byte("libcxx")))
	c = Configuration{MatchingCppLibraries: []CppLibrary{cpp}}
	assert.True(t, Matches(c, Axes{CppLibrary: CppLibrary{Type: Libcxx, Form: Dynamic}}))
	assert.False(t, Matches(c, Axes{CppLibrary: CppLibrary{Type: Libstdcxx, Form: Dynamic}}))

	// a listed form still restricts
	c = Configuration{MatchingCppLibraries: []CppLibrary{{Type: Libcxx, Form: Static}}}
	assert.False(t, Matches(c, Axes{CppLibrary: CppLibrary{Type: Libcxx, Form: Dynamic}}))
}

func TestMerged_PredicatesReflectQuery(t *testing.T) {
	fragments := []Configuration{
		{MatchingTargetOperatingSystems: []OperatingSystem{Linux, Mac}, CFlags: []string{"-fPIC"}},
	}

	m := Merged(fragments, Axes{TargetOS: Linux, ConfigurationType: Release})
	assert.Equal(t, []OperatingSystem{Linux}, m.MatchingTargetOperatingSystems)
	assert.Equal(t, []ConfigurationType{Release}, m.MatchingConfigurationTypes)
	assert.Nil(t, m.MatchingTargetArchitectures)
	assert.Nil(t, m.MatchingToolchains)

	// the merged result can be merged again
	again := Merged([]Configuration{m}, Axes{TargetOS: Linux})
	assert.Equal(t, []string{"-fPIC"}, again.CFlags)
	assert.Empty(t, Merged([]Configuration{m}, Axes{TargetOS: Mac}).CFlags)
}

func TestMerged_Empty(t *testing.T) {
	m := Merged(nil, Axes{})
	assert.Equal(t, Configuration{}, m)
}

func TestForFile_FileFragmentsComeLast(t *testing.T) {
	project := []Configuration{
		{CppFlags: []string{"-O2"}, OutputDirectory: "out"},
		{MatchingToolchains: []Toolchain{VisualStudio}, CppFlags: []string{"/EHsc"}},
	}
	file := NewFile("src/slow.cpp")
	file.Configurations = []Configuration{
		{CppFlags: []string{"-O0"}, OutputDirectory: "slow"},
	}

	m := ForFile(project, file, Axes{Toolchain: Ninja})
	assert.Equal(t, []string{"-O2", "-O0"}, m.CppFlags)
	assert.Equal(t, "slow", m.OutputDirectory)
}

func TestDefine(t *testing.T) {
	d := NewDefine("NAME")
	assert.Nil(t, d.Value)
	assert.Equal(t, "NAME", d.String())

	d = NewDefine("VERSION=1.2=3")
	require.NotNil(t, d.Value)
	assert.Equal(t, "1.2=3", *d.Value)
	assert.Equal(t, "VERSION=1.2=3", d.String())

	d = NewDefine("EMPTY=")
	require.NotNil(t, d.Value)
	assert.Equal(t, "", *d.Value)
}

func TestAxisParsing(t *testing.T) {
	var os OperatingSystem
	require.NoError(t, os.Set("ios"))
	assert.Equal(t, IOS, os)

	var tc Toolchain
	require.ErrorIs(t, tc.Set("Make"), ErrUnknownValue)

	var lib CLibrary
	require.NoError(t, lib.UnmarshalText([]byte("GLIBC:dynamic")))
	assert.Equal(t, CLibrary{Type: Glibc, Form: Dynamic}, lib)
	assert.Equal(t, "glibc:Dynamic", lib.String())

	var cpp CppLibrary
	require.NoError(t, cpp.UnmarshalText([]byte("libcxx")))
	assert.Equal(t, CppLibrary{Type: Libcxx}, cpp)
	require.Error(t, cpp.UnmarshalText([]byte("libcxx:Shared")))
}

func TestFileTypeOf(t *testing.T) {
	tests := map[string]FileType{
		"a.c":        FileCSource,
		"b.CPP":      FileCppSource,
		"c.mm":       FileObjCppSource,
		"d.hpp":      FileHeader,
		"e.asm":      FileAssembly,
		"res/app.rc": FileResource,
		"README":     FileUnknown,
	}
	for path, want := range tests {
		assert.Equal(t, want, FileTypeOf(path), path)
	}
	assert.True(t, FileCppSource.IsCxx())
	assert.False(t, FileHeader.IsSource())
}
