package gen

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qobs-build/qgen/internal/configuration"
)

// NinjaGen writes a single configuration build.ninja.
type NinjaGen struct {
	settings     Settings
	cc, cxx, ar  string
	compilerArgs []string
	targets      []Target
}

func NewNinjaGen(s Settings) *NinjaGen {
	return &NinjaGen{settings: s, cc: "cc", cxx: "c++", ar: "ar"}
}

func (g *NinjaGen) SetCompiler(cc, cxx, ar string, extraFlags []string) {
	g.cc, g.cxx, g.ar, g.compilerArgs = cc, cxx, ar, extraFlags
}

func (g *NinjaGen) BuildFile() string {
	return filepath.Join(g.settings.BuildDir, "build.ninja")
}

func (g *NinjaGen) AddTarget(t Target) {
	g.targets = append(g.targets, t)
}

var (
	ninjaPathEscaper  = strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ")
	ninjaValueEscaper = strings.NewReplacer("$", "$$", "\n", " ")
)

func quote(s string) string { return ninjaPathEscaper.Replace(filepath.ToSlash(s)) }

func quoteAll(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = quote(p)
	}
	return strings.Join(quoted, " ")
}

func (g *NinjaGen) Generate() ([]File, error) {
	s := g.settings
	a := s.Axes
	var sb strings.Builder

	writeln(&sb, "ninja_required_version = 1.3")
	writeln(&sb, "builddir = ", quote(s.BuildDir))
	writeln(&sb, "cc = ", ninjaValueEscaper.Replace(shellQuote(g.cc)))
	writeln(&sb, "cxx = ", ninjaValueEscaper.Replace(shellQuote(g.cxx)))
	writeln(&sb, "ar = ", ninjaValueEscaper.Replace(shellQuote(g.ar)))
	writeln(&sb)

	write(&sb,
		`rule cc
  command = $cc -MD -MF $out.d $flags -c $in -o $out
  depfile = $out.d
  deps = gcc
  description = CC $out
`)
	write(&sb,
		`rule cxx
  command = $cxx -MD -MF $out.d $flags -c $in -o $out
  depfile = $out.d
  deps = gcc
  description = CXX $out
`)
	write(&sb,
		`rule ar
  command = $ar rcs $out $in
  description = AR $out
`)
	write(&sb,
		`rule link
  command = $ld $pre -o $out $in $post
  description = LINK $out
`)
	writeln(&sb)

	var defaults []string
	for _, t := range g.targets {
		p := t.Project
		tt := p.TargetTypeAt(a)
		out := p.OutputFile(a, s.BuildDir)
		if out == "" {
			continue
		}

		sources := objectFiles(p, a, filepath.Join(s.BuildDir, "obj"), ".o")
		objs := make([]string, 0, len(sources))
		for _, src := range sources {
			c := p.FileConfiguration(src.file, a)
			rule := "cc"
			if src.file.Type.IsCxx() {
				rule = "cxx"
			}
			writeln(&sb, "build ", quote(src.obj), ": ", rule, " ", quote(src.file.Path))
			flags := gccCompileArgs(c, src.file.Type, tt, s, a.ConfigurationType, g.compilerArgs)
			writeln(&sb, "  flags = ", ninjaValueEscaper.Replace(shellJoin(flags)))
			objs = append(objs, src.obj)
		}

		if tt == configuration.StaticLibrary {
			writeln(&sb, "build ", quote(out), ": ar ", quoteAll(objs))
		} else {
			artifacts, _, _ := linkInputs(t, a, s.BuildDir)
			write(&sb, "build ", quote(out), ": link ", quoteAll(objs))
			if len(artifacts) > 0 {
				write(&sb, " | ", quoteAll(artifacts))
			}
			writeln(&sb)

			ld := g.cc
			if hasCxx(t, a) {
				ld = g.cxx
			}
			pre, post := gccLinkArgs(t, p.Merged(a), tt, s, a, g.compilerArgs)
			writeln(&sb, "  ld = ", ninjaValueEscaper.Replace(shellQuote(ld)))
			writeln(&sb, "  pre = ", ninjaValueEscaper.Replace(shellJoin(pre)))
			writeln(&sb, "  post = ", ninjaValueEscaper.Replace(shellJoin(post)))
		}
		writeln(&sb, "build ", quote(p.Name), ": phony ", quote(out))
		writeln(&sb)
		defaults = append(defaults, p.Name)
	}

	if len(defaults) > 0 {
		writeln(&sb, "default ", quoteAll(defaults))
	}

	return []File{{Path: g.BuildFile(), Content: []byte(sb.String())}}, nil
}

func (g *NinjaGen) Invoke(ctx context.Context) error {
	args := []string{"-C", g.settings.BuildDir}
	if g.settings.Jobs > 0 {
		args = append(args, "-j", strconv.Itoa(g.settings.Jobs))
	}
	return run(ctx, "", "ninja", args...)
}
