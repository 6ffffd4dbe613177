// Package configuration models conditionally applicable slices of build
// settings and merges the ones that apply to a point in the axis space.
package configuration

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

// Define is a preprocessor definition. A nil Value defines the key without one.
type Define struct {
	Key   string
	Value *string
}

// NewDefine parses "KEY" or "KEY=VALUE".
func NewDefine(text string) Define {
	key, value, ok := strings.Cut(text, "=")
	if !ok {
		return Define{Key: key}
	}
	return Define{Key: key, Value: &value}
}

func (d Define) String() string {
	if d.Value == nil {
		return d.Key
	}
	return d.Key + "=" + *d.Value
}

func (d *Define) UnmarshalText(data []byte) error {
	*d = NewDefine(string(data))
	return nil
}

// FileType classifies a file by what the toolchain does with it.
type FileType string

const (
	FileUnknown      FileType = "Unknown"
	FileCSource      FileType = "CSource"
	FileCppSource    FileType = "CppSource"
	FileObjCSource   FileType = "ObjectiveCSource"
	FileObjCppSource FileType = "ObjectiveCppSource"
	FileHeader       FileType = "Header"
	FileAssembly     FileType = "Assembly"
	FileResource     FileType = "Resource"
)

var fileTypesByExtension = map[string]FileType{
	".c":   FileCSource,
	".cpp": FileCppSource,
	".cc":  FileCppSource,
	".cxx": FileCppSource,
	".c++": FileCppSource,
	".m":   FileObjCSource,
	".mm":  FileObjCppSource,
	".h":   FileHeader,
	".hh":  FileHeader,
	".hpp": FileHeader,
	".hxx": FileHeader,
	".inl": FileHeader,
	".s":   FileAssembly,
	".asm": FileAssembly,
	".rc":  FileResource,
}

// FileTypeOf derives the file type from the extension of path.
func FileTypeOf(path string) FileType {
	if t, ok := fileTypesByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return FileUnknown
}

// IsSource reports whether files of this type are compiled.
func (t FileType) IsSource() bool {
	switch t {
	case FileCSource, FileCppSource, FileObjCSource, FileObjCppSource, FileAssembly:
		return true
	}
	return false
}

// IsCxx reports whether files of this type are compiled as C++.
func (t FileType) IsCxx() bool {
	return t == FileCppSource || t == FileObjCppSource
}

// File is a file of a project along with fragments that refine settings for
// that file alone.
type File struct {
	Path           string
	Type           FileType
	Exported       bool
	Configurations []Configuration
}

// NewFile returns a File whose type is derived from its extension.
func NewFile(path string) File {
	return File{Path: path, Type: FileTypeOf(path)}
}

// Configuration is a fragment: matching predicates, one per axis, and the
// settings it contributes when all of them hold. An empty predicate matches
// any value.
type Configuration struct {
	MatchingTargetTypes            []TargetType        `toml:"target_types" yaml:"target_types"`
	MatchingHostOperatingSystems   []OperatingSystem   `toml:"host_operating_systems" yaml:"host_operating_systems"`
	MatchingHostArchitectures      []Architecture      `toml:"host_architectures" yaml:"host_architectures"`
	MatchingTargetOperatingSystems []OperatingSystem   `toml:"target_operating_systems" yaml:"target_operating_systems"`
	MatchingTargetArchitectures    []Architecture      `toml:"target_architectures" yaml:"target_architectures"`
	MatchingWindowsRuntimes        []WindowsRuntime    `toml:"windows_runtimes" yaml:"windows_runtimes"`
	MatchingToolchains             []Toolchain         `toml:"toolchains" yaml:"toolchains"`
	MatchingCompilers              []Compiler          `toml:"compilers" yaml:"compilers"`
	MatchingCLibraries             []CLibrary          `toml:"c_libraries" yaml:"c_libraries"`
	MatchingCppLibraries           []CppLibrary        `toml:"cpp_libraries" yaml:"cpp_libraries"`
	MatchingConfigurationTypes     []ConfigurationType `toml:"configuration_types" yaml:"configuration_types"`

	TargetType               TargetType        `toml:"target_type" yaml:"target_type"`
	BundleIdentifier         string            `toml:"bundle_identifier" yaml:"bundle_identifier"`
	OutputDirectory          string            `toml:"output_directory" yaml:"output_directory"`
	IncludeDirectories       []string          `toml:"include_directories" yaml:"include_directories"`
	SystemIncludeDirectories []string          `toml:"system_include_directories" yaml:"system_include_directories"`
	Defines                  []Define          `toml:"defines" yaml:"defines"`
	CommonFlags              []string          `toml:"common_flags" yaml:"common_flags"`
	CFlags                   []string          `toml:"c_flags" yaml:"c_flags"`
	CppFlags                 []string          `toml:"cpp_flags" yaml:"cpp_flags"`
	Options                  map[string]string `toml:"options" yaml:"options"`
	LibDirectories           []string          `toml:"lib_directories" yaml:"lib_directories"`
	Libs                     []string          `toml:"libs" yaml:"libs"`
	LinkerFlags              []string          `toml:"linker_flags" yaml:"linker_flags"`
	PostLinkerFlags          []string          `toml:"post_linker_flags" yaml:"post_linker_flags"`
	Files                    []File            `toml:"-" yaml:"-"`
}

// Matches reports whether c applies at a. An axis holds when a leaves it
// unspecified, c places no restriction on it, or c lists a's value.
func Matches(c Configuration, a Axes) bool {
	return matchAxis(c.MatchingTargetTypes, a.TargetType) &&
		matchAxis(c.MatchingHostOperatingSystems, a.HostOS) &&
		matchAxis(c.MatchingHostArchitectures, a.HostArch) &&
		matchAxis(c.MatchingTargetOperatingSystems, a.TargetOS) &&
		matchAxis(c.MatchingTargetArchitectures, a.TargetArch) &&
		matchAxis(c.MatchingWindowsRuntimes, a.WindowsRuntime) &&
		matchAxis(c.MatchingToolchains, a.Toolchain) &&
		matchAxis(c.MatchingCompilers, a.Compiler) &&
		matchLibrary(c.MatchingCLibraries, a.CLibrary) &&
		matchLibrary(c.MatchingCppLibraries, a.CppLibrary) &&
		matchAxis(c.MatchingConfigurationTypes, a.ConfigurationType)
}

func matchAxis[T comparable](allowed []T, v T) bool {
	var unspecified T
	return v == unspecified || len(allowed) == 0 || slices.Contains(allowed, v)
}

// matchLibrary is matchAxis for runtime libraries, where a listed library
// without a form matches every form of its type.
func matchLibrary[T CLibrary | CppLibrary](allowed []T, v T) bool {
	var unspecified T
	if v == unspecified || len(allowed) == 0 {
		return true
	}
	typ, form := libraryParts(v)
	return slices.ContainsFunc(allowed, func(l T) bool {
		t, f := libraryParts(l)
		return t == typ && (f == "" || form == "" || f == form)
	})
}

func libraryParts[T CLibrary | CppLibrary](l T) (string, LibraryForm) {
	switch l := any(l).(type) {
	case CLibrary:
		return string(l.Type), l.Form
	case CppLibrary:
		return string(l.Type), l.Form
	}
	return "", ""
}

// Filter returns the fragments that match a, in declaration order.
func Filter(fragments []Configuration, a Axes) []Configuration {
	var out []Configuration
	for _, c := range fragments {
		if Matches(c, a) {
			out = append(out, c)
		}
	}
	return out
}

// Merged folds every fragment matching a, in declaration order, into one
// Configuration. Lists are concatenated without deduplication, scalars take
// the last non-empty value and options are overridden key by key. The result
// matches exactly the axes a specifies and is a wildcard on the others.
func Merged(fragments []Configuration, a Axes) Configuration {
	var m Configuration
	for _, c := range Filter(fragments, a) {
		if c.TargetType != "" {
			m.TargetType = c.TargetType
		}
		if c.BundleIdentifier != "" {
			m.BundleIdentifier = c.BundleIdentifier
		}
		if c.OutputDirectory != "" {
			m.OutputDirectory = c.OutputDirectory
		}
		m.IncludeDirectories = append(m.IncludeDirectories, c.IncludeDirectories...)
		m.SystemIncludeDirectories = append(m.SystemIncludeDirectories, c.SystemIncludeDirectories...)
		m.Defines = append(m.Defines, c.Defines...)
		m.CommonFlags = append(m.CommonFlags, c.CommonFlags...)
		m.CFlags = append(m.CFlags, c.CFlags...)
		m.CppFlags = append(m.CppFlags, c.CppFlags...)
		if len(c.Options) > 0 {
			if m.Options == nil {
				m.Options = make(map[string]string, len(c.Options))
			}
			maps.Copy(m.Options, c.Options)
		}
		m.LibDirectories = append(m.LibDirectories, c.LibDirectories...)
		m.Libs = append(m.Libs, c.Libs...)
		m.LinkerFlags = append(m.LinkerFlags, c.LinkerFlags...)
		m.PostLinkerFlags = append(m.PostLinkerFlags, c.PostLinkerFlags...)
		m.Files = append(m.Files, c.Files...)
	}

	m.MatchingTargetTypes = exact(a.TargetType)
	m.MatchingHostOperatingSystems = exact(a.HostOS)
	m.MatchingHostArchitectures = exact(a.HostArch)
	m.MatchingTargetOperatingSystems = exact(a.TargetOS)
	m.MatchingTargetArchitectures = exact(a.TargetArch)
	m.MatchingWindowsRuntimes = exact(a.WindowsRuntime)
	m.MatchingToolchains = exact(a.Toolchain)
	m.MatchingCompilers = exact(a.Compiler)
	m.MatchingCLibraries = exact(a.CLibrary)
	m.MatchingCppLibraries = exact(a.CppLibrary)
	m.MatchingConfigurationTypes = exact(a.ConfigurationType)
	return m
}

func exact[T comparable](v T) []T {
	var unspecified T
	if v == unspecified {
		return nil
	}
	return []T{v}
}

// ForFile merges the project fragments followed by the file's own fragments,
// so file level settings come last.
func ForFile(project []Configuration, file File, a Axes) Configuration {
	all := make([]Configuration, 0, len(project)+len(file.Configurations))
	all = append(all, project...)
	all = append(all, file.Configurations...)
	return Merged(all, a)
}
