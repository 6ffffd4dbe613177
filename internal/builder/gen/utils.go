package gen

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/msg"
	"github.com/qobs-build/qgen/internal/project"
)

func write(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
}
func writeln(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
	sb.WriteByte('\n')
}

// Option keys understood by every generator.
const (
	OptionCStandard   = "c_standard"
	OptionCppStandard = "cpp_standard"
	OptionWarnings    = "warnings"
)

// sourceFile is a file to compile and the object it produces.
type sourceFile struct {
	file configuration.File
	obj  string
}

// objectFiles maps the compiled files of p at a to object paths under
// objDir, mirroring their location below the project directory.
func objectFiles(p *project.Project, a configuration.Axes, objDir, ext string) []sourceFile {
	var out []sourceFile
	for _, f := range p.FilesAt(a) {
		if !f.Type.IsSource() {
			continue
		}
		rel, err := filepath.Rel(p.Directory, f.Path)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(f.Path)
			msg.Warn("source file %s is outside of project directory %s", f.Path, p.Directory)
		}
		out = append(out, sourceFile{file: f, obj: filepath.Join(objDir, p.Name, rel+ext)})
	}
	return out
}

// hasCxx reports whether p or anything it links compiles C++ at a.
func hasCxx(t Target, a configuration.Axes) bool {
	for _, p := range append([]*project.Project{t.Project}, t.Dependencies...) {
		for _, f := range p.FilesAt(a) {
			if f.Type.IsCxx() {
				return true
			}
		}
	}
	return false
}

// linkInputs collects what a target links against at a: artifacts of library
// dependencies in link order, and the library directories and libraries
// static dependencies declare, since those are only resolved at final link.
func linkInputs(t Target, a configuration.Axes, buildDir string) (artifacts, libDirs, libs []string) {
	for _, dep := range t.Dependencies {
		switch dep.TargetTypeAt(a) {
		case configuration.StaticLibrary:
			merged := dep.Merged(a)
			libDirs = append(libDirs, merged.LibDirectories...)
			libs = append(libs, merged.Libs...)
		case configuration.DynamicLibrary:
		default:
			continue
		}
		artifacts = append(artifacts, dep.OutputFile(a, buildDir))
	}
	return artifacts, libDirs, libs
}

func libArg(lib string) string {
	if strings.HasPrefix(lib, "-") || strings.ContainsAny(lib, `/\`) {
		return lib
	}
	switch filepath.Ext(lib) {
	case ".a", ".so", ".dylib", ".lib", ".o":
		return lib
	}
	return "-l" + lib
}

// gccCompileArgs returns the flags for compiling a file of type ft with a gcc
// compatible driver, given its effective configuration.
func gccCompileArgs(c configuration.Configuration, ft configuration.FileType, tt configuration.TargetType, s Settings, ct configuration.ConfigurationType, extra []string) []string {
	args := slices.Clone(extra)
	switch ct {
	case configuration.Debug:
		args = append(args, "-g", "-O0")
	case configuration.Release:
		args = append(args, "-O3", "-DNDEBUG")
	}
	if s.LinkTimeOpt {
		args = append(args, "-flto")
	}
	if tt == configuration.DynamicLibrary && s.Axes.TargetOS != configuration.Windows {
		args = append(args, "-fPIC")
	}
	if ft.IsCxx() {
		if std := c.Options[OptionCppStandard]; std != "" {
			args = append(args, "-std=c++"+std)
		}
	} else if ft == configuration.FileCSource {
		if std := c.Options[OptionCStandard]; std != "" {
			args = append(args, "-std=c"+std)
		}
	}
	switch c.Options[OptionWarnings] {
	case "all":
		args = append(args, "-Wall")
	case "extra":
		args = append(args, "-Wall", "-Wextra")
	case "error":
		args = append(args, "-Wall", "-Werror")
	case "none":
		args = append(args, "-w")
	}

	args = append(args, c.CommonFlags...)
	if ft.IsCxx() {
		args = append(args, c.CppFlags...)
	} else {
		args = append(args, c.CFlags...)
	}
	for _, dir := range c.IncludeDirectories {
		args = append(args, "-I"+dir)
	}
	for _, dir := range c.SystemIncludeDirectories {
		args = append(args, "-isystem", dir)
	}
	for _, d := range c.Defines {
		args = append(args, "-D"+d.String())
	}
	return args
}

// gccLinkArgs returns the flags placed before and after the inputs when
// linking an executable or dynamic library.
func gccLinkArgs(t Target, c configuration.Configuration, tt configuration.TargetType, s Settings, a configuration.Axes, extra []string) (pre, post []string) {
	pre = slices.Clone(extra)
	if tt == configuration.DynamicLibrary {
		if a.TargetOS == configuration.Mac || a.TargetOS == configuration.IOS {
			pre = append(pre, "-dynamiclib")
		} else {
			pre = append(pre, "-shared")
		}
	}
	if s.LinkTimeOpt {
		pre = append(pre, "-flto")
	}
	pre = append(pre, c.LinkerFlags...)

	artifacts, depDirs, depLibs := linkInputs(t, a, s.BuildDir)
	post = append(post, artifacts...)
	for _, dir := range append(slices.Clone(c.LibDirectories), depDirs...) {
		post = append(post, "-L"+dir)
	}
	for _, lib := range append(slices.Clone(c.Libs), depLibs...) {
		post = append(post, libArg(lib))
	}
	post = append(post, c.PostLinkerFlags...)
	return pre, post
}

// shellQuote quotes s for a POSIX shell when it contains anything but safe
// characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.ContainsRune("-_./=+,:@%", c):
		default:
			safe = false
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}
