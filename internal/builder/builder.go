// Package builder loads project declarations and drives a generator with the
// resolved variables.
package builder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/qgen/internal/builder/gen"
	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/msg"
	"github.com/qobs-build/qgen/internal/project"
	"github.com/qobs-build/qgen/internal/replay"
	"github.com/qobs-build/qgen/internal/schema"
	"github.com/qobs-build/qgen/internal/variable"
	"go.trai.ch/zerr"
)

var (
	ErrNotExecutable  = zerr.New("project is not an executable")
	ErrNoExecutable   = zerr.New("no executable project to run")
	ErrUnnamed        = zerr.New("project has no name")
	ErrUnknownProject = zerr.New("unknown project")
)

// Options configure a Builder.
type Options struct {
	// Variables must be fully resolved.
	Variables *schema.Variables
	// Values is the resolved snapshot, exposed to expressions as vars.
	Values variable.Values
	// Overrides are written to the replay script.
	Overrides []variable.Override
	Dialect   replay.Dialect
	// ShowDiff prints what changed in each rewritten file.
	ShowDiff bool
	// Environ is exposed to expressions as environ, os.Environ() when nil.
	Environ []string
}

type Builder struct {
	opts   Options
	env    Env
	finder toolFinder
}

func New(opts Options) *Builder {
	if opts.Environ == nil {
		opts.Environ = os.Environ()
	}
	return &Builder{
		opts:   opts,
		env:    NewEnv(opts.Variables, opts.Values, opts.Environ),
		finder: defaultFinder,
	}
}

// Generated is the outcome of one generation run.
type Generated struct {
	Name      string
	Workspace *project.Workspace
	Settings  gen.Settings
	Generator gen.Generator
	Results   []gen.WriteResult
}

// Load reads the declaration file, fetches remote sources and expands file
// patterns. Projects are returned in reference order.
func (b *Builder) Load() (string, *project.Workspace, error) {
	v := b.opts.Variables
	decl, err := LoadDeclaration(v.ProjectFile, b.env)
	if err != nil {
		return "", nil, err
	}
	declDir := filepath.Dir(v.ProjectFile)

	name := decl.Workspace.Name
	if name == "" {
		name = filepath.Base(v.SourceDirectory)
	}

	var base []configuration.Configuration
	if len(v.ExtraDefines) > 0 {
		base = append(base, configuration.Configuration{Defines: v.ExtraDefines})
	}
	global, err := fragments(decl.Workspace.Configurations, declDir, b.env.In(declDir))
	if err != nil {
		return "", nil, err
	}
	base = append(base, global...)

	projects := make([]*project.Project, 0, len(decl.Projects))
	exports := make(map[string][]string, len(decl.Projects))
	for _, d := range decl.Projects {
		p, exported, err := b.loadProject(d, declDir, base)
		if err != nil {
			return "", nil, zerr.With(err, "project", d.Name)
		}
		projects = append(projects, p)
		exports[p.Name] = exported
	}

	w, err := project.NewWorkspace(projects)
	if err != nil {
		return "", nil, err
	}

	// exported directories are include directories of the project and of
	// everything that links it
	for _, p := range w.Projects {
		var dirs []string
		for _, q := range append([]*project.Project{p}, w.Dependencies(p)...) {
			dirs = appendUnique(dirs, exports[q.Name]...)
		}
		if len(dirs) > 0 {
			p.Configurations = append(p.Configurations, configuration.Configuration{IncludeDirectories: dirs})
		}
	}

	return name, w, nil
}

func (b *Builder) loadProject(d ProjectDecl, declDir string, base []configuration.Configuration) (*project.Project, []string, error) {
	if d.Name == "" {
		return nil, nil, ErrUnnamed
	}

	dir := declDir
	if d.Source != "" {
		var err error
		dir, err = fetchSource(d.Source, declDir, filepath.Join(b.opts.Variables.BuildDirectory, "_deps", d.Name))
		if err != nil {
			return nil, nil, err
		}
	}
	if d.Directory != "" {
		if filepath.IsAbs(d.Directory) {
			dir = filepath.Clean(d.Directory)
		} else {
			dir = filepath.Join(dir, d.Directory)
		}
	}
	env := b.env.In(dir)

	if d.Prepare != "" {
		ok, err := env.Test(d.Prepare)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, zerr.With(zerr.Wrap(ErrPrepareFailed, ""), "expression", d.Prepare)
		}
	}

	paths, err := collectFiles(dir, d.Files, d.Exclude, true)
	if err != nil {
		return nil, nil, err
	}
	exported, err := collectFiles(dir, d.Exported, d.Exclude, false)
	if err != nil {
		return nil, nil, err
	}
	var exportedFiles, exportedDirs []string
	for _, path := range exported {
		if stat, err := os.Stat(path); err == nil && stat.IsDir() {
			exportedDirs = appendUnique(exportedDirs, path)
		} else {
			exportedFiles = append(exportedFiles, path)
			exportedDirs = appendUnique(exportedDirs, filepath.Dir(path))
		}
	}
	isExported := func(path string) bool {
		if slices.Contains(exportedFiles, path) {
			return true
		}
		return slices.ContainsFunc(exportedDirs, func(e string) bool {
			return strings.HasPrefix(path, e+string(filepath.Separator))
		})
	}

	perFile := make([][]configuration.Configuration, len(d.FileSettings))
	for i, fd := range d.FileSettings {
		if perFile[i], err = fragments(fd.Configurations, dir, env); err != nil {
			return nil, nil, err
		}
	}

	var files []configuration.File
	for _, path := range appendUnique(paths, exportedFiles...) {
		f := configuration.NewFile(path)
		f.Exported = isExported(path)
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		for i, fd := range d.FileSettings {
			if ok, _ := doublestar.Match(fd.Pattern, filepath.ToSlash(rel)); ok {
				f.Configurations = append(f.Configurations, perFile[i]...)
			}
		}
		files = append(files, f)
	}

	own, err := fragments(d.Configurations, dir, env)
	if err != nil {
		return nil, nil, err
	}

	p := &project.Project{
		Name:           d.Name,
		Id:             d.Id,
		TargetType:     d.Type,
		TargetName:     d.TargetName,
		VirtualDir:     d.VirtualDir,
		FilePath:       d.FilePath,
		Directory:      dir,
		References:     d.References,
		Files:          files,
		Configurations: append(slices.Clone(base), own...),
	}
	msg.Debug("loaded project %s with %d files from %s", p.Name, len(files), dir)
	return p, exportedDirs, nil
}

// fragments turns declared fragments into configurations, dropping those
// whose When expression is false. Relative directories and file patterns are
// resolved against dir.
func fragments(decls []FragmentDecl, dir string, env Env) ([]configuration.Configuration, error) {
	var out []configuration.Configuration
	for _, fd := range decls {
		ok, err := env.Test(fd.When)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		c := fd.Configuration
		c.IncludeDirectories = absPaths(dir, c.IncludeDirectories)
		c.SystemIncludeDirectories = absPaths(dir, c.SystemIncludeDirectories)
		c.LibDirectories = absPaths(dir, c.LibDirectories)

		paths, err := collectFiles(dir, fd.Files, nil, true)
		if err != nil {
			return nil, err
		}
		c.Files = nil
		for _, path := range paths {
			c.Files = append(c.Files, configuration.NewFile(path))
		}
		out = append(out, c)
	}
	return out, nil
}

func absPaths(dir string, paths []string) []string {
	if paths == nil {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = filepath.Clean(p)
		} else {
			out[i] = filepath.Join(dir, p)
		}
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// collectFiles expands doublestar patterns below dir into absolute paths, in
// pattern order without duplicates. Directories match too unless filesOnly
// is set.
func collectFiles(dir string, patterns, exclude []string, filesOnly bool) ([]string, error) {
	var files []string
	fsys := os.DirFS(dir)

	var globparams []doublestar.GlobOption
	if filesOnly {
		globparams = append(globparams, doublestar.WithFilesOnly())
	}

	excluded := func(rel string) bool {
		for _, pat := range exclude {
			if ok, _ := doublestar.Match(pat, rel); ok {
				return true
			}
		}
		return false
	}

	for _, pat := range patterns {
		if filepath.IsAbs(pat) {
			files = appendUnique(files, filepath.Clean(pat))
			continue
		}
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pat), globparams...)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "bad file pattern"), "pattern", pat)
		}
		if len(matches) == 0 {
			msg.Warn("pattern %q matched nothing in %s", pat, dir)
		}
		for _, match := range matches {
			if excluded(match) {
				continue
			}
			files = appendUnique(files, filepath.Join(dir, filepath.FromSlash(match)))
		}
	}
	return files, nil
}

// Generate loads the declarations, renders the backend files and the replay
// script, and writes those that changed.
func (b *Builder) Generate(ctx context.Context) (*Generated, error) {
	v := b.opts.Variables
	name, w, err := b.Load()
	if err != nil {
		return nil, err
	}

	s := gen.Settings{
		Name:           name,
		SourceDir:      v.SourceDirectory,
		BuildDir:       v.BuildDirectory,
		Axes:           v.Axes(),
		Configurations: v.Configurations(),
		Jobs:           v.Jobs,
		LinkTimeOpt:    v.EnableLinkTimeOptimization,
	}
	g, err := gen.New(s)
	if err != nil {
		return nil, err
	}

	if !schema.IsMultiConfiguration(v.Toolchain) {
		ts, err := b.finder.findToolset(v.Compiler, s.Axes)
		if err != nil {
			msg.Warn("%v, falling back to cc and c++", err)
		} else {
			msg.Debug("using %s, %s and %s", ts.CC, ts.CXX, ts.AR)
			g.SetCompiler(ts.CC, ts.CXX, ts.AR, ts.Flags)
		}
	}

	for _, p := range w.Projects {
		g.AddTarget(gen.Target{
			Project:      p,
			References:   w.References(p, s.Axes, s.Configurations, s.BuildDir),
			Dependencies: w.Dependencies(p),
		})
	}

	files, err := g.Generate()
	if err != nil {
		return nil, err
	}
	files = append(files, gen.File{
		Path:    filepath.Join(v.BuildDirectory, b.opts.Dialect.FileName()),
		Content: []byte(replay.Render(b.opts.Dialect, b.opts.Overrides)),
	})

	results, err := gen.WriteFiles(ctx, files, b.opts.ShowDiff, v.Jobs)
	if err != nil {
		return nil, err
	}
	b.report(results)

	return &Generated{Name: name, Workspace: w, Settings: s, Generator: g, Results: results}, nil
}

func (b *Builder) report(results []gen.WriteResult) {
	changed := 0
	for _, r := range results {
		if !r.Changed {
			msg.Debug("%s is up to date", r.Path)
			continue
		}
		changed++
		msg.Info("wrote %s", r.Path)
		if r.Diff != "" {
			w := &msg.IndentWriter{Indent: "    ", W: msg.Out}
			w.Write([]byte(r.Diff))
		}
	}
	msg.Info("generated %d files, %d changed", len(results), changed)
}

// Build generates and then runs the backend build tool.
func (b *Builder) Build(ctx context.Context) (*Generated, error) {
	res, err := b.Generate(ctx)
	if err != nil {
		return nil, err
	}
	msg.Info("building %s with %s", res.Name, res.Settings.Axes.Toolchain)
	if err := res.Generator.Invoke(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// BuildAndRun builds, then runs the named executable project with args, or
// the last executable in reference order when name is empty. The first
// configuration type is the one run.
func (b *Builder) BuildAndRun(ctx context.Context, name string, args []string) error {
	res, err := b.Build(ctx)
	if err != nil {
		return err
	}

	s := res.Settings
	a := s.AxesFor(s.Configurations[0])
	p, err := executable(res.Workspace, name, a)
	if err != nil {
		return err
	}

	return runProgram(ctx, p.OutputFile(a, s.BuildDir), args)
}

func runProgram(ctx context.Context, path string, args []string) error {
	msg.Debug("running %s", path)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		return zerr.With(fmt.Errorf("%w: %w", gen.ErrExternalExecution, err), "command", path)
	}
	return nil
}

func executable(w *project.Workspace, name string, a configuration.Axes) (*project.Project, error) {
	if name != "" {
		p, ok := w.Lookup(name)
		if !ok {
			return nil, zerr.With(zerr.Wrap(ErrUnknownProject, ""), "project", name)
		}
		if p.TargetTypeAt(a) != configuration.Executable {
			return nil, zerr.With(zerr.Wrap(ErrNotExecutable, ""), "project", name)
		}
		return p, nil
	}
	for _, p := range slices.Backward(w.Projects) {
		if p.TargetTypeAt(a) == configuration.Executable {
			return p, nil
		}
	}
	return nil, ErrNoExecutable
}
