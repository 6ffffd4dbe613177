package builder

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/qobs-build/qgen/internal/configuration"
	"go.trai.ch/zerr"
)

var ErrCompilerNotFound = zerr.New("compiler not found")

// Toolset is the set of drivers a gcc style generator invokes.
type Toolset struct {
	CC, CXX, AR string
	// Flags are passed to every compile and link, e.g. a cross target.
	Flags []string
}

var (
	gccCandidates   = toolCandidates{cc: []string{"gcc", "cc"}, cxx: []string{"g++", "c++"}, ar: []string{"gcc-ar", "ar"}}
	clangCandidates = toolCandidates{cc: []string{"clang", "cc"}, cxx: []string{"clang++", "c++"}, ar: []string{"llvm-ar", "ar"}}
)

type toolCandidates struct {
	cc, cxx, ar []string
}

// toolFinder locates executables. Tests replace its functions.
type toolFinder struct {
	lookPath func(string) (string, error)
	getenv   func(string) string
}

var defaultFinder = toolFinder{lookPath: exec.LookPath, getenv: os.Getenv}

// findToolset picks the drivers for compiler c building for target. CC, CXX
// and AR in the environment take precedence over discovery.
func (f toolFinder) findToolset(c configuration.Compiler, a configuration.Axes) (Toolset, error) {
	candidates := gccCandidates
	if c == configuration.Clang {
		candidates = clangCandidates
	}

	var dirs []string
	if a.TargetOS == configuration.Android {
		if ndk := f.getenv("ANDROID_NDK_ROOT"); ndk != "" {
			dirs = append(dirs, filepath.Join(ndk, "toolchains", "llvm", "prebuilt", ndkHostTag(), "bin"))
		}
		candidates = clangCandidates
	}

	ts := Toolset{
		CC:  f.find("CC", candidates.cc, dirs),
		CXX: f.find("CXX", candidates.cxx, dirs),
		AR:  f.find("AR", candidates.ar, dirs),
	}
	if ts.CC == "" && ts.CXX == "" {
		return Toolset{}, zerr.With(zerr.Wrap(ErrCompilerNotFound, ""), "compiler", string(c))
	}
	// one driver is enough for both languages
	if ts.CC == "" {
		ts.CC = ts.CXX
	}
	if ts.CXX == "" {
		ts.CXX = ts.CC
	}
	if ts.AR == "" {
		ts.AR = "ar"
	}

	ts.Flags = crossFlags(c, a)
	return ts, nil
}

func (f toolFinder) find(envVar string, names, dirs []string) string {
	if v := f.getenv(envVar); v != "" {
		return v
	}
	for _, dir := range dirs {
		for _, name := range names {
			if path, err := f.lookPath(filepath.Join(dir, name)); err == nil {
				return path
			}
		}
	}
	for _, name := range names {
		if path, err := f.lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func ndkHostTag() string {
	switch runtime.GOOS {
	case "windows":
		return "windows-x86_64"
	case "darwin":
		return "darwin-x86_64"
	default:
		return "linux-x86_64"
	}
}

// androidAPILevel is the minimum platform generated code targets.
const androidAPILevel = "21"

var (
	androidTriples = map[configuration.Architecture]string{
		configuration.ARM64:  "aarch64-linux-android",
		configuration.ARMv7a: "armv7a-linux-androideabi",
		configuration.X86:    "i686-linux-android",
		configuration.X64:    "x86_64-linux-android",
	}
	iosTriples = map[configuration.Architecture]string{
		configuration.ARM64: "arm64-apple-ios13.0",
		configuration.X64:   "x86_64-apple-ios13.0-simulator",
	}
	linuxTriples = map[configuration.Architecture]string{
		configuration.ARM64:  "aarch64-linux-gnu",
		configuration.ARMv7a: "armv7a-linux-gnueabihf",
		configuration.X86:    "i686-linux-gnu",
		configuration.X64:    "x86_64-linux-gnu",
	}
)

// crossFlags returns the driver flags selecting the target when it differs
// from the host.
func crossFlags(c configuration.Compiler, a configuration.Axes) []string {
	switch a.TargetOS {
	case configuration.Android:
		if triple, ok := androidTriples[a.TargetArch]; ok {
			return []string{"--target=" + triple + androidAPILevel}
		}
	case configuration.IOS:
		if triple, ok := iosTriples[a.TargetArch]; ok {
			return []string{"--target=" + triple}
		}
	case configuration.Linux:
		if a.TargetArch == a.HostArch || a.HostArch == "" {
			return nil
		}
		if c == configuration.Clang {
			if triple, ok := linuxTriples[a.TargetArch]; ok {
				return []string{"--target=" + triple}
			}
		}
		if a.TargetArch == configuration.X86 && a.HostArch == configuration.X64 {
			return []string{"-m32"}
		}
	}
	return nil
}
