// Package gen turns ordered projects and their merged configurations into
// native build files.
package gen

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/msg"
	"github.com/qobs-build/qgen/internal/project"
	"go.trai.ch/zerr"
)

var (
	// ErrExternalExecution is returned when a backend tool exits unsuccessfully.
	ErrExternalExecution = zerr.New("external command failed")

	ErrUnsupportedToolchain = zerr.New("unsupported toolchain")
)

// Settings are shared by every target of one generation run.
type Settings struct {
	Name      string
	SourceDir string
	BuildDir  string
	// Axes is the point generated for. Multi-configuration generators vary
	// the configuration type over Configurations.
	Axes           configuration.Axes
	Configurations []configuration.ConfigurationType
	Jobs           int
	LinkTimeOpt    bool
}

// AxesFor returns s.Axes with the configuration type set to ct.
func (s Settings) AxesFor(ct configuration.ConfigurationType) configuration.Axes {
	a := s.Axes
	a.ConfigurationType = ct
	return a
}

// Target is a project with its resolved references.
type Target struct {
	Project *project.Project
	// References are the direct references with their artifacts.
	References []project.Reference
	// Dependencies are all projects linked into this one, in link order.
	Dependencies []*project.Project
}

// File is a generated output.
type File struct {
	Path    string
	Content []byte
}

type Generator interface {
	SetCompiler(cc, cxx, ar string, extraFlags []string)
	AddTarget(t Target)
	// Generate renders every output file. Nothing is written to disk.
	Generate() ([]File, error)
	// BuildFile is the path of the main output.
	BuildFile() string
	Invoke(ctx context.Context) error
}

// New returns the generator for the toolchain in s.Axes.
func New(s Settings) (Generator, error) {
	switch s.Axes.Toolchain {
	case configuration.Ninja:
		return NewNinjaGen(s), nil
	case configuration.VisualStudio:
		return NewVS2022Gen(s), nil
	case configuration.Script:
		return NewScriptGen(s), nil
	default:
		return nil, zerr.With(zerr.Wrap(ErrUnsupportedToolchain, ""), "toolchain", string(s.Axes.Toolchain))
	}
}

// run executes a backend tool, streaming its output.
func run(ctx context.Context, dir, name string, args ...string) error {
	line := strings.Join(append([]string{name}, args...), " ")
	msg.Debug("running %s", line)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return zerr.With(fmt.Errorf("%w: %w", ErrExternalExecution, err), "command", line)
	}
	return nil
}
