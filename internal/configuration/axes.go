package configuration

import (
	"runtime"
	"strings"

	"go.trai.ch/zerr"
)

// ErrUnknownValue is returned when text names no known value of an axis.
var ErrUnknownValue = zerr.New("unknown axis value")

type (
	TargetType        string
	OperatingSystem   string
	Architecture      string
	WindowsRuntime    string
	Toolchain         string
	Compiler          string
	CLibraryType      string
	CppLibraryType    string
	LibraryForm       string
	ConfigurationType string
)

const (
	Executable     TargetType = "Executable"
	StaticLibrary  TargetType = "StaticLibrary"
	DynamicLibrary TargetType = "DynamicLibrary"
	HeaderOnly     TargetType = "HeaderOnly"

	Windows OperatingSystem = "Windows"
	Linux   OperatingSystem = "Linux"
	Mac     OperatingSystem = "Mac"
	Android OperatingSystem = "Android"
	IOS     OperatingSystem = "iOS"

	X86    Architecture = "x86"
	X64    Architecture = "x64"
	ARMv7a Architecture = "armv7a"
	ARM64  Architecture = "arm64"

	Win32 WindowsRuntime = "Win32"
	WinRT WindowsRuntime = "WinRT"

	Ninja        Toolchain = "Ninja"
	VisualStudio Toolchain = "VisualStudio"
	Script       Toolchain = "Script"

	VisualCpp Compiler = "VisualCpp"
	ClangCl   Compiler = "ClangCl"
	GCC       Compiler = "gcc"
	Clang     Compiler = "clang"

	DefaultCLibrary CLibraryType = "Default"
	VisualCRuntime  CLibraryType = "VisualCRuntime"
	Glibc           CLibraryType = "glibc"
	Musl            CLibraryType = "musl"
	Bionic          CLibraryType = "Bionic"

	DefaultCppLibrary CppLibraryType = "Default"
	VisualCppRuntime  CppLibraryType = "VisualCppRuntime"
	Libstdcxx         CppLibraryType = "libstdcxx"
	Libcxx            CppLibraryType = "libcxx"

	Static  LibraryForm = "Static"
	Dynamic LibraryForm = "Dynamic"

	Debug   ConfigurationType = "Debug"
	Release ConfigurationType = "Release"
)

var (
	KnownTargetTypes        = []TargetType{Executable, StaticLibrary, DynamicLibrary, HeaderOnly}
	KnownOperatingSystems   = []OperatingSystem{Windows, Linux, Mac, Android, IOS}
	KnownArchitectures      = []Architecture{X86, X64, ARMv7a, ARM64}
	KnownWindowsRuntimes    = []WindowsRuntime{Win32, WinRT}
	KnownToolchains         = []Toolchain{Ninja, VisualStudio, Script}
	KnownCompilers          = []Compiler{VisualCpp, ClangCl, GCC, Clang}
	KnownCLibraryTypes      = []CLibraryType{DefaultCLibrary, VisualCRuntime, Glibc, Musl, Bionic}
	KnownCppLibraryTypes    = []CppLibraryType{DefaultCppLibrary, VisualCppRuntime, Libstdcxx, Libcxx}
	KnownLibraryForms       = []LibraryForm{Static, Dynamic}
	KnownConfigurationTypes = []ConfigurationType{Debug, Release}
)

// parseEnum matches text case-insensitively against known and returns the
// canonical spelling.
func parseEnum[T ~string](axis string, known []T, text string) (T, error) {
	text = strings.TrimSpace(text)
	for _, k := range known {
		if strings.EqualFold(string(k), text) {
			return k, nil
		}
	}
	return "", zerr.With(zerr.With(zerr.Wrap(ErrUnknownValue, ""), "axis", axis), "value", text)
}

// Strings converts enum values to plain strings.
func Strings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func (x TargetType) String() string        { return string(x) }
func (x OperatingSystem) String() string   { return string(x) }
func (x Architecture) String() string      { return string(x) }
func (x WindowsRuntime) String() string    { return string(x) }
func (x Toolchain) String() string         { return string(x) }
func (x Compiler) String() string          { return string(x) }
func (x CLibraryType) String() string      { return string(x) }
func (x CppLibraryType) String() string    { return string(x) }
func (x LibraryForm) String() string       { return string(x) }
func (x ConfigurationType) String() string { return string(x) }

func (x *TargetType) Set(in string) (err error) {
	*x, err = parseEnum("target type", KnownTargetTypes, in)
	return
}

func (x *OperatingSystem) Set(in string) (err error) {
	*x, err = parseEnum("operating system", KnownOperatingSystems, in)
	return
}

func (x *Architecture) Set(in string) (err error) {
	*x, err = parseEnum("architecture", KnownArchitectures, in)
	return
}

func (x *WindowsRuntime) Set(in string) (err error) {
	*x, err = parseEnum("windows runtime", KnownWindowsRuntimes, in)
	return
}

func (x *Toolchain) Set(in string) (err error) {
	*x, err = parseEnum("toolchain", KnownToolchains, in)
	return
}

func (x *Compiler) Set(in string) (err error) {
	*x, err = parseEnum("compiler", KnownCompilers, in)
	return
}

func (x *CLibraryType) Set(in string) (err error) {
	*x, err = parseEnum("c library", KnownCLibraryTypes, in)
	return
}

func (x *CppLibraryType) Set(in string) (err error) {
	*x, err = parseEnum("c++ library", KnownCppLibraryTypes, in)
	return
}

func (x *LibraryForm) Set(in string) (err error) {
	*x, err = parseEnum("library form", KnownLibraryForms, in)
	return
}

func (x *ConfigurationType) Set(in string) (err error) {
	*x, err = parseEnum("configuration type", KnownConfigurationTypes, in)
	return
}

func (x *TargetType) UnmarshalText(data []byte) error        { return x.Set(string(data)) }
func (x *OperatingSystem) UnmarshalText(data []byte) error   { return x.Set(string(data)) }
func (x *Architecture) UnmarshalText(data []byte) error      { return x.Set(string(data)) }
func (x *WindowsRuntime) UnmarshalText(data []byte) error    { return x.Set(string(data)) }
func (x *Toolchain) UnmarshalText(data []byte) error         { return x.Set(string(data)) }
func (x *Compiler) UnmarshalText(data []byte) error          { return x.Set(string(data)) }
func (x *CLibraryType) UnmarshalText(data []byte) error      { return x.Set(string(data)) }
func (x *CppLibraryType) UnmarshalText(data []byte) error    { return x.Set(string(data)) }
func (x *LibraryForm) UnmarshalText(data []byte) error       { return x.Set(string(data)) }
func (x *ConfigurationType) UnmarshalText(data []byte) error { return x.Set(string(data)) }

// CLibrary is a C runtime library and how it is linked, written "type:form".
// In a predicate a missing form matches every form of the type.
type CLibrary struct {
	Type CLibraryType
	Form LibraryForm
}

func (l CLibrary) String() string { return joinLibrary(string(l.Type), string(l.Form)) }

func (l *CLibrary) UnmarshalText(data []byte) error {
	typ, form, _ := strings.Cut(string(data), ":")
	if err := l.Type.Set(typ); err != nil {
		return err
	}
	l.Form = ""
	if form != "" {
		return l.Form.Set(form)
	}
	return nil
}

// CppLibrary is a C++ standard library and how it is linked, written "type:form".
type CppLibrary struct {
	Type CppLibraryType
	Form LibraryForm
}

func (l CppLibrary) String() string { return joinLibrary(string(l.Type), string(l.Form)) }

func (l *CppLibrary) UnmarshalText(data []byte) error {
	typ, form, _ := strings.Cut(string(data), ":")
	if err := l.Type.Set(typ); err != nil {
		return err
	}
	l.Form = ""
	if form != "" {
		return l.Form.Set(form)
	}
	return nil
}

func joinLibrary(typ, form string) string {
	if form == "" {
		return typ
	}
	return typ + ":" + form
}

// Axes is one point in the build variability space. A zero field leaves
// that axis unspecified, which every fragment matches.
type Axes struct {
	TargetType        TargetType
	HostOS            OperatingSystem
	HostArch          Architecture
	TargetOS          OperatingSystem
	TargetArch        Architecture
	WindowsRuntime    WindowsRuntime
	Toolchain         Toolchain
	Compiler          Compiler
	CLibrary          CLibrary
	CppLibrary        CppLibrary
	ConfigurationType ConfigurationType
}

// HostOperatingSystem maps runtime.GOOS onto the operating system axis.
func HostOperatingSystem() OperatingSystem {
	switch runtime.GOOS {
	case "windows":
		return Windows
	case "darwin":
		return Mac
	case "android":
		return Android
	case "ios":
		return IOS
	default:
		return Linux
	}
}

// HostArchitecture maps runtime.GOARCH onto the architecture axis.
func HostArchitecture() Architecture {
	switch runtime.GOARCH {
	case "386":
		return X86
	case "arm":
		return ARMv7a
	case "arm64":
		return ARM64
	default:
		return X64
	}
}
