package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/variable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, host Host, env variable.MapSource, edits map[string]string) (*Variables, *variable.Pass) {
	t.Helper()
	var v Variables
	r, err := variable.NewResolver(Items(&v, host), env)
	require.NoError(t, err)
	for name, raw := range edits {
		require.NoError(t, r.Set(name, raw))
	}
	return &v, r.Resolve()
}

func linuxHost(t *testing.T) Host {
	return Host{OS: configuration.Linux, Arch: configuration.X64, WorkingDirectory: t.TempDir(), CPUs: 8}
}

func TestItems_LinuxDefaults(t *testing.T) {
	host := linuxHost(t)
	require.NoError(t, os.WriteFile(filepath.Join(host.WorkingDirectory, "qgen.yaml"), nil, 0o644))

	v, pass := resolve(t, host, nil, nil)
	require.True(t, pass.Complete(), "pending: %v", pass.Pending())

	assert.Equal(t, host.WorkingDirectory, v.SourceDirectory)
	assert.Equal(t, filepath.Join(host.WorkingDirectory, "qgen.yaml"), v.ProjectFile)
	assert.Equal(t, configuration.Ninja, v.Toolchain)
	assert.Equal(t, configuration.GCC, v.Compiler)
	assert.Equal(t, configuration.Linux, v.TargetOS)
	assert.Equal(t, configuration.X64, v.TargetArch)
	assert.Equal(t, configuration.Debug, v.ConfigurationType)
	assert.Empty(t, v.ConfigurationTypes)
	assert.Equal(t, filepath.Join(host.WorkingDirectory, "build", "ninja"), v.BuildDirectory)
	assert.Equal(t, 8, v.Jobs)
	assert.False(t, v.EnableLinkTimeOptimization)
	assert.Empty(t, v.ExtraDefines)

	assert.Equal(t, []configuration.ConfigurationType{configuration.Debug}, v.Configurations())

	st, ok := pass.Lookup(VarExtraDefines)
	require.True(t, ok)
	assert.True(t, st.Hidden)
}

func TestItems_MissingProjectFileIsInvalid(t *testing.T) {
	v, pass := resolve(t, linuxHost(t), nil, nil)
	assert.Equal(t, []string{VarProjectFile}, pass.Pending())
	assert.Empty(t, v.ProjectFile)

	st, _ := pass.Lookup(VarProjectFile)
	assert.Equal(t, variable.StateInvalid, st.State)
	assert.Equal(t, "File not exist.", st.Message)
}

func TestItems_VisualStudioIsMultiConfiguration(t *testing.T) {
	host := Host{OS: configuration.Windows, Arch: configuration.X64, WorkingDirectory: t.TempDir(), CPUs: 4}
	require.NoError(t, os.WriteFile(filepath.Join(host.WorkingDirectory, "qgen.toml"), nil, 0o644))

	v, pass := resolve(t, host, nil, nil)
	require.True(t, pass.Complete(), "pending: %v", pass.Pending())

	assert.Equal(t, configuration.VisualStudio, v.Toolchain)
	assert.Equal(t, configuration.VisualCpp, v.Compiler)
	assert.Equal(t, configuration.Windows, v.TargetOS)
	assert.Empty(t, v.ConfigurationType)
	assert.Equal(t, []configuration.ConfigurationType{configuration.Debug, configuration.Release}, v.Configurations())

	st, _ := pass.Lookup(VarTargetOperatingSystem)
	assert.IsType(t, variable.FixedSpec{}, st.Spec)
	st, _ = pass.Lookup(VarConfigurationType)
	assert.IsType(t, variable.NotApplySpec{}, st.Spec)

	a := v.Axes()
	assert.Empty(t, a.ConfigurationType)
	assert.Equal(t, configuration.Win32, a.WindowsRuntime)
	assert.Equal(t, configuration.VisualCRuntime, a.CLibrary.Type)
}

func TestItems_EmptyConfigurationTypesInvalid(t *testing.T) {
	host := Host{OS: configuration.Windows, Arch: configuration.X64, WorkingDirectory: t.TempDir(), CPUs: 4}
	require.NoError(t, os.WriteFile(filepath.Join(host.WorkingDirectory, "qgen.toml"), nil, 0o644))

	_, pass := resolve(t, host, variable.MapSource{VarConfigurationTypes: variable.EmptySentinel}, nil)
	assert.Equal(t, []string{VarConfigurationTypes}, pass.Pending())
}

func TestItems_Edits(t *testing.T) {
	host := linuxHost(t)
	require.NoError(t, os.WriteFile(filepath.Join(host.WorkingDirectory, "qgen.toml"), nil, 0o644))

	v, pass := resolve(t, host, nil, map[string]string{
		VarTargetOperatingSystem:      "Android",
		VarCompiler:                   "clang",
		VarJobs:                       "2",
		VarEnableLinkTimeOptimization: "true",
		VarExtraDefines:               "FOO BAR=1",
	})
	require.True(t, pass.Complete(), "pending: %v", pass.Pending())

	assert.Equal(t, configuration.Android, v.TargetOS)
	assert.Equal(t, configuration.ARM64, v.TargetArch)
	assert.Equal(t, 2, v.Jobs)
	assert.True(t, v.EnableLinkTimeOptimization)
	assert.Equal(t, []string{"FOO", "BAR=1"}, []string{v.ExtraDefines[0].String(), v.ExtraDefines[1].String()})

	a := v.Axes()
	assert.Equal(t, configuration.Bionic, a.CLibrary.Type)
	assert.Equal(t, configuration.Libcxx, a.CppLibrary.Type)
	assert.Equal(t, configuration.Debug, a.ConfigurationType)
}

func TestItems_JobsMustBePositive(t *testing.T) {
	_, pass := resolve(t, linuxHost(t), nil, map[string]string{VarJobs: "0"})
	st, _ := pass.Lookup(VarJobs)
	assert.Equal(t, variable.StateInvalid, st.State)
}

func TestItems_BuildDirectoryMustNotBeAFile(t *testing.T) {
	host := linuxHost(t)
	file := filepath.Join(host.WorkingDirectory, "qgen.toml")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, pass := resolve(t, host, nil, map[string]string{VarBuildDirectory: file})
	st, _ := pass.Lookup(VarBuildDirectory)
	assert.Equal(t, variable.StateInvalid, st.State)
	assert.Equal(t, "Not a directory.", st.Message)
}
