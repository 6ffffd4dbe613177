// Package project holds build targets, their files and fragments, and the
// references between them.
package project

import (
	"path/filepath"
	"slices"

	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/toposort"
	"go.trai.ch/zerr"
)

// Project is a named build target. Projects are immutable once loaded.
type Project struct {
	Name string
	// Id identifies the project in generated files, e.g. a GUID.
	Id         string
	TargetType configuration.TargetType
	// TargetName is the artifact base name, Name when empty.
	TargetName string
	// VirtualDir groups projects in IDEs that support folders.
	VirtualDir string
	// FilePath is where the generated project file goes, if the backend
	// writes one per project.
	FilePath string
	// Directory is the root that file paths are relative to.
	Directory      string
	References     []string
	Files          []configuration.File
	Configurations []configuration.Configuration
}

// ArtifactName returns TargetName, falling back to Name.
func (p *Project) ArtifactName() string {
	if p.TargetName != "" {
		return p.TargetName
	}
	return p.Name
}

// fragments returns the project's fragments preceded by one carrying the
// declared target type, so any fragment may override it.
func (p *Project) fragments() []configuration.Configuration {
	out := make([]configuration.Configuration, 0, len(p.Configurations)+1)
	out = append(out, configuration.Configuration{TargetType: p.TargetType})
	return append(out, p.Configurations...)
}

// at fills in the target type of a when the caller leaves it unspecified.
// Fragments are first queried with the declared type, Executable when none is
// declared. When a matching fragment changes the type, the result is queried
// again with the changed type.
func (p *Project) at(a configuration.Axes) configuration.Axes {
	if a.TargetType != "" {
		return a
	}
	a.TargetType = p.TargetType
	if a.TargetType == "" {
		a.TargetType = configuration.Executable
	}
	if tt := configuration.Merged(p.fragments(), a).TargetType; tt != "" {
		a.TargetType = tt
	}
	return a
}

// Merged returns the project level configuration at a.
func (p *Project) Merged(a configuration.Axes) configuration.Configuration {
	return configuration.Merged(p.fragments(), p.at(a))
}

// TargetTypeAt returns the effective target type at a.
func (p *Project) TargetTypeAt(a configuration.Axes) configuration.TargetType {
	return p.at(a).TargetType
}

// FilesAt returns the project files followed by files attached by fragments
// matching a.
func (p *Project) FilesAt(a configuration.Axes) []configuration.File {
	files := slices.Clone(p.Files)
	return append(files, p.Merged(a).Files...)
}

// FileConfiguration returns the effective configuration of f at a: the
// project fragments followed by the file's own.
func (p *Project) FileConfiguration(f configuration.File, a configuration.Axes) configuration.Configuration {
	return configuration.ForFile(p.fragments(), f, p.at(a))
}

// OutputFile returns the path of the artifact built at a. The directory is the
// merged output directory or buildDir/<configuration type>. Header only
// projects have no artifact and yield "".
func (p *Project) OutputFile(a configuration.Axes, buildDir string) string {
	a = p.at(a)
	name := ArtifactFileName(p.ArtifactName(), a.TargetType, a.TargetOS)
	if name == "" {
		return ""
	}

	dir := configuration.Merged(p.fragments(), a).OutputDirectory
	switch {
	case dir == "":
		dir = filepath.Join(buildDir, string(a.ConfigurationType))
	case !filepath.IsAbs(dir):
		dir = filepath.Join(buildDir, dir)
	}
	return filepath.Join(dir, name)
}

// ArtifactFileName decorates name with the prefix and extension the target
// operating system uses for tt.
func ArtifactFileName(name string, tt configuration.TargetType, os configuration.OperatingSystem) string {
	switch tt {
	case configuration.HeaderOnly:
		return ""
	case configuration.StaticLibrary:
		if os == configuration.Windows {
			return name + ".lib"
		}
		return "lib" + name + ".a"
	case configuration.DynamicLibrary:
		switch os {
		case configuration.Windows:
			return name + ".dll"
		case configuration.Mac, configuration.IOS:
			return "lib" + name + ".dylib"
		default:
			return "lib" + name + ".so"
		}
	default:
		if os == configuration.Windows {
			return name + ".exe"
		}
		return name
	}
}

// Reference is a project as seen by a project that links against it.
type Reference struct {
	Project *Project
	// OutputFiles holds the artifact path per configuration type.
	OutputFiles map[configuration.ConfigurationType]string
}

// Workspace is a set of projects ordered so referenced projects come first.
type Workspace struct {
	Projects []*Project
	byName   map[string]*Project
}

// NewWorkspace orders projects by their references. It fails on duplicate
// names, references to unknown projects and reference cycles.
func NewWorkspace(projects []*Project) (*Workspace, error) {
	name := func(p *Project) string { return p.Name }
	refs := func(p *Project) []string { return p.References }

	if err := toposort.Check(projects, name, refs); err != nil {
		return nil, zerr.Wrap(err, "invalid project references")
	}
	ordered, err := toposort.PartialOrderBy(projects, name, refs)
	if err != nil {
		return nil, zerr.Wrap(err, "invalid project references")
	}

	w := &Workspace{Projects: ordered, byName: make(map[string]*Project, len(ordered))}
	for _, p := range ordered {
		w.byName[p.Name] = p
	}
	return w, nil
}

// Lookup returns the project called name.
func (w *Workspace) Lookup(name string) (*Project, bool) {
	p, ok := w.byName[name]
	return p, ok
}

// Dependencies returns every project p references directly or indirectly,
// each one before the projects it references, which is the order static
// libraries are linked in.
func (w *Workspace) Dependencies(p *Project) []*Project {
	seen := make(map[string]bool)
	stack := slices.Clone(p.References)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if dep, ok := w.byName[name]; ok {
			stack = append(stack, dep.References...)
		}
	}

	var deps []*Project
	for i := len(w.Projects) - 1; i >= 0; i-- {
		if seen[w.Projects[i].Name] {
			deps = append(deps, w.Projects[i])
		}
	}
	return deps
}

// References resolves the direct references of p with their artifact path for
// each configuration type in types.
func (w *Workspace) References(p *Project, a configuration.Axes, types []configuration.ConfigurationType, buildDir string) []Reference {
	refs := make([]Reference, 0, len(p.References))
	for _, name := range p.References {
		dep, ok := w.byName[name]
		if !ok {
			continue
		}
		ref := Reference{Project: dep, OutputFiles: make(map[configuration.ConfigurationType]string, len(types))}
		for _, ct := range types {
			at := a
			at.ConfigurationType = ct
			ref.OutputFiles[ct] = dep.OutputFile(at, buildDir)
		}
		refs = append(refs, ref)
	}
	return refs
}
