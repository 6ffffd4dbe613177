package gen

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/qobs-build/qgen/internal/configuration"
)

// ScriptGen writes a POSIX shell script that compiles and links every target
// in reference order. Compiles within a target run in parallel, at most Jobs
// at a time.
type ScriptGen struct {
	settings     Settings
	cc, cxx, ar  string
	compilerArgs []string
	targets      []Target
}

func NewScriptGen(s Settings) *ScriptGen {
	return &ScriptGen{settings: s, cc: "cc", cxx: "c++", ar: "ar"}
}

func (g *ScriptGen) SetCompiler(cc, cxx, ar string, extraFlags []string) {
	g.cc, g.cxx, g.ar, g.compilerArgs = cc, cxx, ar, extraFlags
}

func (g *ScriptGen) BuildFile() string {
	return filepath.Join(g.settings.BuildDir, "build.sh")
}

func (g *ScriptGen) AddTarget(t Target) {
	g.targets = append(g.targets, t)
}

const scriptPrelude = `#!/bin/sh
set -e

pids=""
spawn() {
	echo "$1"
	shift
	"$@" &
	pids="$pids $!"
}
join() {
	for pid in $pids; do
		wait "$pid" || exit 1
	done
	pids=""
}
`

func (g *ScriptGen) Generate() ([]File, error) {
	s := g.settings
	a := s.Axes
	jobs := max(s.Jobs, 1)

	var sb strings.Builder
	write(&sb, scriptPrelude)
	writeln(&sb)
	writeln(&sb, "CC=", shellQuote(g.cc))
	writeln(&sb, "CXX=", shellQuote(g.cxx))
	writeln(&sb, "AR=", shellQuote(g.ar))

	for _, t := range g.targets {
		p := t.Project
		tt := p.TargetTypeAt(a)
		out := p.OutputFile(a, s.BuildDir)
		if out == "" {
			continue
		}

		writeln(&sb)
		writeln(&sb, "# ", p.Name)
		sources := objectFiles(p, a, filepath.Join(s.BuildDir, "obj"), ".o")

		dirs := map[string]bool{filepath.Dir(out): true}
		mkdirs := []string{filepath.Dir(out)}
		for _, src := range sources {
			if dir := filepath.Dir(src.obj); !dirs[dir] {
				dirs[dir] = true
				mkdirs = append(mkdirs, dir)
			}
		}
		writeln(&sb, "mkdir -p ", shellJoin(mkdirs))

		objs := make([]string, 0, len(sources))
		for i, src := range sources {
			c := p.FileConfiguration(src.file, a)
			compiler := `"$CC"`
			if src.file.Type.IsCxx() {
				compiler = `"$CXX"`
			}
			flags := gccCompileArgs(c, src.file.Type, tt, s, a.ConfigurationType, g.compilerArgs)
			writeln(&sb, "spawn ", shellQuote("CC "+src.obj), " ", compiler, " ", shellJoin(flags), " -c ", shellQuote(src.file.Path), " -o ", shellQuote(src.obj))
			objs = append(objs, src.obj)
			if (i+1)%jobs == 0 {
				writeln(&sb, "join")
			}
		}
		if len(sources)%jobs != 0 {
			writeln(&sb, "join")
		}

		if tt == configuration.StaticLibrary {
			writeln(&sb, "echo ", shellQuote("AR "+out))
			writeln(&sb, "rm -f ", shellQuote(out))
			writeln(&sb, `"$AR" rcs `, shellQuote(out), " ", shellJoin(objs))
			continue
		}

		linker := `"$CC"`
		if hasCxx(t, a) {
			linker = `"$CXX"`
		}
		pre, post := gccLinkArgs(t, p.Merged(a), tt, s, a, g.compilerArgs)
		writeln(&sb, "echo ", shellQuote("LINK "+out))
		line := []string{linker}
		if len(pre) > 0 {
			line = append(line, shellJoin(pre))
		}
		line = append(line, "-o", shellQuote(out))
		if len(objs) > 0 {
			line = append(line, shellJoin(objs))
		}
		if len(post) > 0 {
			line = append(line, shellJoin(post))
		}
		writeln(&sb, strings.Join(line, " "))
	}

	return []File{{Path: g.BuildFile(), Content: []byte(sb.String())}}, nil
}

func (g *ScriptGen) Invoke(ctx context.Context) error {
	return run(ctx, g.settings.BuildDir, "sh", g.BuildFile())
}
