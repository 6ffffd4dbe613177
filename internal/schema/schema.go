// Package schema declares the variables qgen resolves before generating, and
// the bundle their values are collected into.
package schema

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/variable"
)

// Variable names.
const (
	VarSourceDirectory            = "SourceDirectory"
	VarProjectFile                = "ProjectFile"
	VarHostOperatingSystem        = "HostOperatingSystem"
	VarHostArchitecture           = "HostArchitecture"
	VarToolchain                  = "Toolchain"
	VarCompiler                   = "Compiler"
	VarTargetOperatingSystem      = "TargetOperatingSystem"
	VarTargetArchitecture         = "TargetArchitecture"
	VarConfigurationType          = "ConfigurationType"
	VarConfigurationTypes         = "ConfigurationTypes"
	VarBuildDirectory             = "BuildDirectory"
	VarJobs                       = "Jobs"
	VarEnableLinkTimeOptimization = "EnableLinkTimeOptimization"
	VarExtraDefines               = "ExtraDefines"
)

// ProjectFileNames are the declaration file names looked for in the source
// directory, in order of preference.
var ProjectFileNames = []string{"qgen.toml", "qgen.yaml", "qgen.yml"}

// Variables receives the value of every variable as it resolves.
type Variables struct {
	SourceDirectory            string
	ProjectFile                string
	HostOS                     configuration.OperatingSystem
	HostArch                   configuration.Architecture
	Toolchain                  configuration.Toolchain
	Compiler                   configuration.Compiler
	TargetOS                   configuration.OperatingSystem
	TargetArch                 configuration.Architecture
	ConfigurationType          configuration.ConfigurationType
	ConfigurationTypes         []configuration.ConfigurationType
	BuildDirectory             string
	Jobs                       int
	EnableLinkTimeOptimization bool
	ExtraDefines               []configuration.Define
}

// Host describes the machine qgen runs on. It seeds defaults.
type Host struct {
	OS               configuration.OperatingSystem
	Arch             configuration.Architecture
	WorkingDirectory string
	CPUs             int
}

// CurrentHost inspects the running process.
func CurrentHost() Host {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Host{
		OS:               configuration.HostOperatingSystem(),
		Arch:             configuration.HostArchitecture(),
		WorkingDirectory: wd,
		CPUs:             runtime.NumCPU(),
	}
}

// IsMultiConfiguration reports whether the toolchain builds every
// configuration type from one generated tree.
func IsMultiConfiguration(t configuration.Toolchain) bool {
	return t == configuration.VisualStudio
}

// Items returns the variable declarations. Resolved values are written to v.
func Items(v *Variables, host Host) []variable.Item {
	return []variable.Item{
		{
			Name: VarSourceDirectory,
			Spec: func(variable.Values) variable.Spec {
				return variable.PathSpec{Default: host.WorkingDirectory, IsDirectory: true}
			},
			Consume: func(val variable.Value) { v.SourceDirectory = val.String() },
		},
		{
			Name:         VarProjectFile,
			Dependencies: []string{VarSourceDirectory},
			Spec: func(vals variable.Values) variable.Spec {
				return variable.PathSpec{Default: defaultProjectFile(vals.String(VarSourceDirectory))}
			},
			Consume: func(val variable.Value) { v.ProjectFile = val.String() },
		},
		{
			Name: VarHostOperatingSystem,
			Spec: func(variable.Values) variable.Spec {
				return variable.FixedSpec{Value: variable.StringValue(host.OS)}
			},
			Consume: func(val variable.Value) { v.HostOS = configuration.OperatingSystem(val.String()) },
		},
		{
			Name: VarHostArchitecture,
			Spec: func(variable.Values) variable.Spec {
				return variable.FixedSpec{Value: variable.StringValue(host.Arch)}
			},
			Consume: func(val variable.Value) { v.HostArch = configuration.Architecture(val.String()) },
		},
		{
			Name:         VarToolchain,
			Dependencies: []string{VarHostOperatingSystem},
			Spec: func(vals variable.Values) variable.Spec {
				return toolchainSpec(configuration.OperatingSystem(vals.String(VarHostOperatingSystem)))
			},
			Consume: func(val variable.Value) { v.Toolchain = configuration.Toolchain(val.String()) },
		},
		{
			Name:         VarCompiler,
			Dependencies: []string{VarHostOperatingSystem, VarToolchain},
			Spec: func(vals variable.Values) variable.Spec {
				return compilerSpec(
					configuration.OperatingSystem(vals.String(VarHostOperatingSystem)),
					configuration.Toolchain(vals.String(VarToolchain)),
				)
			},
			Consume: func(val variable.Value) { v.Compiler = configuration.Compiler(val.String()) },
		},
		{
			Name:         VarTargetOperatingSystem,
			Dependencies: []string{VarHostOperatingSystem, VarToolchain},
			Spec: func(vals variable.Values) variable.Spec {
				return targetOSSpec(
					configuration.OperatingSystem(vals.String(VarHostOperatingSystem)),
					configuration.Toolchain(vals.String(VarToolchain)),
				)
			},
			Consume: func(val variable.Value) { v.TargetOS = configuration.OperatingSystem(val.String()) },
		},
		{
			Name:         VarTargetArchitecture,
			Dependencies: []string{VarTargetOperatingSystem, VarHostArchitecture},
			Spec: func(vals variable.Values) variable.Spec {
				return targetArchSpec(
					configuration.OperatingSystem(vals.String(VarTargetOperatingSystem)),
					configuration.Architecture(vals.String(VarHostArchitecture)),
				)
			},
			Consume: func(val variable.Value) { v.TargetArch = configuration.Architecture(val.String()) },
		},
		{
			Name:         VarConfigurationType,
			Dependencies: []string{VarToolchain},
			Spec: func(vals variable.Values) variable.Spec {
				if IsMultiConfiguration(configuration.Toolchain(vals.String(VarToolchain))) {
					return variable.NotApplySpec{Value: variable.StringValue("")}
				}
				return variable.SelectionSpec{
					Default: string(configuration.Debug),
					Options: configuration.Strings(configuration.KnownConfigurationTypes),
				}
			},
			Consume: func(val variable.Value) {
				v.ConfigurationType = configuration.ConfigurationType(val.String())
			},
		},
		{
			Name:         VarConfigurationTypes,
			Dependencies: []string{VarToolchain},
			Spec: func(vals variable.Values) variable.Spec {
				if !IsMultiConfiguration(configuration.Toolchain(vals.String(VarToolchain))) {
					return variable.NotApplySpec{Value: variable.StringSetValue(nil)}
				}
				all := configuration.Strings(configuration.KnownConfigurationTypes)
				return variable.MultiSelectionSpec{
					Defaults:  all,
					Options:   all,
					Validator: nonEmpty,
				}
			},
			Consume: func(val variable.Value) {
				set, _ := val.(variable.StringSetValue)
				v.ConfigurationTypes = v.ConfigurationTypes[:0]
				for _, s := range set {
					v.ConfigurationTypes = append(v.ConfigurationTypes, configuration.ConfigurationType(s))
				}
			},
		},
		{
			Name:         VarBuildDirectory,
			Dependencies: []string{VarSourceDirectory, VarToolchain},
			Spec: func(vals variable.Values) variable.Spec {
				return variable.PathSpec{
					Default:     filepath.Join(vals.String(VarSourceDirectory), "build", strings.ToLower(vals.String(VarToolchain))),
					IsDirectory: true,
					Validator:   missingOrDirectory,
				}
			},
			Consume: func(val variable.Value) { v.BuildDirectory = val.String() },
		},
		{
			Name: VarJobs,
			Spec: func(variable.Values) variable.Spec {
				return variable.IntegerSpec{Default: max(host.CPUs, 1), Validator: positive}
			},
			Consume: func(val variable.Value) { v.Jobs = int(val.(variable.IntValue)) },
		},
		{
			Name: VarEnableLinkTimeOptimization,
			Spec: func(variable.Values) variable.Spec {
				return variable.BooleanSpec{}
			},
			Consume: func(val variable.Value) { v.EnableLinkTimeOptimization = bool(val.(variable.BoolValue)) },
		},
		{
			Name:   VarExtraDefines,
			Hidden: true,
			Spec: func(variable.Values) variable.Spec {
				return variable.StringSpec{}
			},
			Consume: func(val variable.Value) {
				v.ExtraDefines = v.ExtraDefines[:0]
				for _, word := range strings.Fields(val.String()) {
					v.ExtraDefines = append(v.ExtraDefines, configuration.NewDefine(word))
				}
			},
		},
	}
}

func defaultProjectFile(dir string) string {
	for _, name := range ProjectFileNames {
		path := filepath.Join(dir, name)
		if stat, err := os.Stat(path); err == nil && !stat.IsDir() {
			return path
		}
	}
	return filepath.Join(dir, ProjectFileNames[0])
}

func toolchainSpec(host configuration.OperatingSystem) variable.Spec {
	if host == configuration.Windows {
		return variable.SelectionSpec{
			Default: string(configuration.VisualStudio),
			Options: configuration.Strings([]configuration.Toolchain{configuration.VisualStudio, configuration.Ninja, configuration.Script}),
		}
	}
	return variable.SelectionSpec{
		Default: string(configuration.Ninja),
		Options: configuration.Strings([]configuration.Toolchain{configuration.Ninja, configuration.Script}),
	}
}

func compilerSpec(host configuration.OperatingSystem, t configuration.Toolchain) variable.Spec {
	if t == configuration.VisualStudio {
		return variable.SelectionSpec{
			Default: string(configuration.VisualCpp),
			Options: configuration.Strings([]configuration.Compiler{configuration.VisualCpp, configuration.ClangCl}),
		}
	}
	if host == configuration.Mac {
		return variable.SelectionSpec{
			Default: string(configuration.Clang),
			Options: configuration.Strings([]configuration.Compiler{configuration.Clang, configuration.GCC}),
		}
	}
	return variable.SelectionSpec{
		Default: string(configuration.GCC),
		Options: configuration.Strings([]configuration.Compiler{configuration.GCC, configuration.Clang}),
	}
}

func targetOSSpec(host configuration.OperatingSystem, t configuration.Toolchain) variable.Spec {
	if t == configuration.VisualStudio {
		return variable.FixedSpec{Value: variable.StringValue(configuration.Windows)}
	}
	options := []configuration.OperatingSystem{host}
	if host == configuration.Mac {
		options = append(options, configuration.IOS)
	}
	options = append(options, configuration.Android)
	return variable.SelectionSpec{
		Default: string(host),
		Options: configuration.Strings(options),
	}
}

var targetArchitectures = map[configuration.OperatingSystem][]configuration.Architecture{
	configuration.Windows: {configuration.X64, configuration.X86, configuration.ARM64},
	configuration.Linux:   {configuration.X64, configuration.X86, configuration.ARM64, configuration.ARMv7a},
	configuration.Mac:     {configuration.ARM64, configuration.X64},
	configuration.Android: {configuration.ARM64, configuration.ARMv7a, configuration.X64, configuration.X86},
	configuration.IOS:     {configuration.ARM64},
}

func targetArchSpec(target configuration.OperatingSystem, host configuration.Architecture) variable.Spec {
	options, ok := targetArchitectures[target]
	if !ok {
		options = configuration.KnownArchitectures
	}
	if len(options) == 1 {
		return variable.FixedSpec{Value: variable.StringValue(options[0])}
	}
	def := options[0]
	if target != configuration.Android && slices.Contains(options, host) {
		def = host
	}
	return variable.SelectionSpec{
		Default: string(def),
		Options: configuration.Strings(options),
	}
}

func nonEmpty(set []string) (bool, string) {
	if len(set) == 0 {
		return false, "Select at least one configuration type."
	}
	return true, ""
}

func missingOrDirectory(path string) (bool, string) {
	stat, err := os.Stat(path)
	if err == nil && !stat.IsDir() {
		return false, "Not a directory."
	}
	return true, ""
}

func positive(n int) (bool, string) {
	if n < 1 {
		return false, "Must be at least 1."
	}
	return true, ""
}

// Configurations returns the configuration types to generate: the selected
// set for multi-configuration toolchains, the single selected type otherwise.
func (v *Variables) Configurations() []configuration.ConfigurationType {
	if IsMultiConfiguration(v.Toolchain) {
		return slices.Clone(v.ConfigurationTypes)
	}
	return []configuration.ConfigurationType{v.ConfigurationType}
}

// Axes returns the axis tuple the variables describe. The configuration type
// is left unspecified for multi-configuration toolchains; generators set it
// per configuration.
func (v *Variables) Axes() configuration.Axes {
	a := configuration.Axes{
		HostOS:     v.HostOS,
		HostArch:   v.HostArch,
		TargetOS:   v.TargetOS,
		TargetArch: v.TargetArch,
		Toolchain:  v.Toolchain,
		Compiler:   v.Compiler,
	}
	if !IsMultiConfiguration(v.Toolchain) {
		a.ConfigurationType = v.ConfigurationType
	}
	if v.TargetOS == configuration.Windows {
		a.WindowsRuntime = configuration.Win32
	}
	a.CLibrary, a.CppLibrary = runtimeLibraries(v.TargetOS, v.Compiler)
	return a
}

func runtimeLibraries(target configuration.OperatingSystem, c configuration.Compiler) (configuration.CLibrary, configuration.CppLibrary) {
	switch {
	case target == configuration.Windows && (c == configuration.VisualCpp || c == configuration.ClangCl):
		return configuration.CLibrary{Type: configuration.VisualCRuntime, Form: configuration.Dynamic},
			configuration.CppLibrary{Type: configuration.VisualCppRuntime, Form: configuration.Dynamic}
	case target == configuration.Android:
		return configuration.CLibrary{Type: configuration.Bionic, Form: configuration.Dynamic},
			configuration.CppLibrary{Type: configuration.Libcxx, Form: configuration.Static}
	case target == configuration.Linux:
		cpp := configuration.Libstdcxx
		if c == configuration.Clang {
			cpp = configuration.DefaultCppLibrary
		}
		return configuration.CLibrary{Type: configuration.Glibc, Form: configuration.Dynamic},
			configuration.CppLibrary{Type: cpp, Form: configuration.Dynamic}
	case target == configuration.Mac || target == configuration.IOS:
		return configuration.CLibrary{Type: configuration.DefaultCLibrary, Form: configuration.Dynamic},
			configuration.CppLibrary{Type: configuration.Libcxx, Form: configuration.Dynamic}
	}
	return configuration.CLibrary{}, configuration.CppLibrary{}
}
