package builder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/schema"
	"github.com/qobs-build/qgen/internal/variable"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var (
	ErrDeclaration      = zerr.New("invalid declaration file")
	ErrUnknownFormat    = zerr.New("unknown declaration file format")
	ErrExpression       = zerr.New("expression failed")
	ErrPrepareFailed    = zerr.New("prepare expression returned false")
	ErrOutsideDirectory = zerr.New("path is outside of project directory")
)

// Declaration is the content of a qgen.toml or qgen.yaml file.
type Declaration struct {
	Workspace WorkspaceDecl `toml:"workspace" yaml:"workspace"`
	Projects  []ProjectDecl `toml:"project" yaml:"project"`
}

type WorkspaceDecl struct {
	Name string `toml:"name" yaml:"name"`
	// Configurations apply to every project, before the project's own.
	Configurations []FragmentDecl `toml:"configuration" yaml:"configuration"`
}

// ProjectDecl declares one project. Paths are relative to Directory, which is
// relative to the declaration file, or to the checkout when Source is set.
type ProjectDecl struct {
	Name       string                   `toml:"name" yaml:"name"`
	Id         string                   `toml:"id" yaml:"id"`
	Type       configuration.TargetType `toml:"type" yaml:"type"`
	TargetName string                   `toml:"target_name" yaml:"target_name"`
	VirtualDir string                   `toml:"virtual_dir" yaml:"virtual_dir"`
	FilePath   string                   `toml:"project_file" yaml:"project_file"`
	Directory  string                   `toml:"directory" yaml:"directory"`
	// Source is a git remote (gh:owner/repo@branch#rev, git:<url>) or a
	// local path.
	Source string `toml:"source" yaml:"source"`
	// Prepare is an expression run once the source is available, e.g. to
	// patch it. It must return true.
	Prepare string `toml:"prepare" yaml:"prepare"`
	// Files, Exclude and Exported are doublestar patterns.
	Files          []string       `toml:"files" yaml:"files"`
	Exclude        []string       `toml:"exclude" yaml:"exclude"`
	Exported       []string       `toml:"exported" yaml:"exported"`
	References     []string       `toml:"references" yaml:"references"`
	Configurations []FragmentDecl `toml:"configuration" yaml:"configuration"`
	FileSettings   []FileDecl     `toml:"file" yaml:"file"`
}

// FragmentDecl is a configuration fragment with an optional When expression
// and file patterns attached when it matches.
type FragmentDecl struct {
	When                        string   `toml:"when" yaml:"when"`
	Files                       []string `toml:"files" yaml:"files"`
	configuration.Configuration `yaml:",inline"`
}

// FileDecl attaches fragments to the files matching Pattern.
type FileDecl struct {
	Pattern        string         `toml:"pattern" yaml:"pattern"`
	Configurations []FragmentDecl `toml:"configuration" yaml:"configuration"`
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env Env) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, m := range matches {
		builder.WriteString(s[lastIndex:m[0]])

		result, err := env.Eval(strings.TrimSpace(s[m[2]:m[3]]))
		if err != nil {
			return "", err
		}

		fmt.Fprintf(&builder, "%v", result)
		lastIndex = m[1]
	}

	builder.WriteString(s[lastIndex:])
	return builder.String(), nil
}

// processExpressions recursively walks the decoded document and evaluates
// expressions in strings
func processExpressions(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// Format is a declaration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf derives the format from a file name.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", zerr.With(zerr.Wrap(ErrUnknownFormat, ""), "path", path)
}

// ParseDeclaration decodes a declaration, evaluating {{ }} expressions in
// every string against env first.
func ParseDeclaration(rdr io.Reader, format Format, env Env) (*Declaration, error) {
	var (
		raw       map[string]any
		marshal   func(any) ([]byte, error)
		unmarshal func([]byte, any) error
	)
	switch format {
	case FormatTOML:
		if err := toml.NewDecoder(rdr).Decode(&raw); err != nil {
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				return nil, zerr.Wrap(ErrDeclaration, derr.String())
			}
			return nil, fmt.Errorf("%w: %w", ErrDeclaration, err)
		}
		marshal, unmarshal = toml.Marshal, toml.Unmarshal
	case FormatYAML:
		if err := yaml.NewDecoder(rdr).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrDeclaration, err)
		}
		marshal, unmarshal = yaml.Marshal, yaml.Unmarshal
	default:
		return nil, zerr.With(zerr.Wrap(ErrUnknownFormat, ""), "format", string(format))
	}
	if raw == nil {
		raw = map[string]any{}
	}

	processed, err := processExpressions(raw, env)
	if err != nil {
		return nil, err
	}

	// round trip so the typed decode sees the interpolated strings
	data, err := marshal(processed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeclaration, err)
	}
	decl := new(Declaration)
	if err := unmarshal(data, decl); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeclaration, err)
	}
	return decl, nil
}

// LoadDeclaration parses the declaration file at path.
func LoadDeclaration(path string, env Env) (*Declaration, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open declaration file"), "path", path)
	}
	defer f.Close()

	decl, err := ParseDeclaration(bufio.NewReader(f), format, env)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return decl, nil
}

//
// expr-lang helpers
//

// Env is what expressions in declaration files can see.
type Env struct {
	Vars       map[string]any    `expr:"vars"`
	HostOS     string            `expr:"host_os"`
	HostArch   string            `expr:"host_arch"`
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Toolchain  string            `expr:"toolchain"`
	Compiler   string            `expr:"compiler"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

// NewEnv builds the expression environment from resolved variables.
func NewEnv(v *schema.Variables, values variable.Values, environ []string) Env {
	env := Env{
		Vars:       values.Map(),
		HostOS:     string(v.HostOS),
		HostArch:   string(v.HostArch),
		TargetOS:   string(v.TargetOS),
		TargetArch: string(v.TargetArch),
		Toolchain:  string(v.Toolchain),
		Compiler:   string(v.Compiler),
		Environ:    make(map[string]string, len(environ)),
		basedir:    v.SourceDirectory,
	}
	for _, e := range environ {
		if k, val, ok := strings.Cut(e, "="); ok {
			env.Environ[k] = val
		}
	}
	return env
}

// In returns env with file functions operating relative to dir.
func (env Env) In(dir string) Env {
	env.basedir = dir
	return env
}

// Eval compiles and runs one expression.
func (env Env) Eval(expression string) (any, error) {
	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, zerr.With(fmt.Errorf("%w: %w", ErrExpression, err), "expression", expression)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return nil, zerr.With(fmt.Errorf("%w: %w", ErrExpression, err), "expression", expression)
	}
	return result, nil
}

// Test evaluates a boolean expression. An empty expression holds.
func (env Env) Test(expression string) (bool, error) {
	if expression == "" {
		return true, nil
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, zerr.With(fmt.Errorf("%w: %w", ErrExpression, err), "expression", expression)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, zerr.With(fmt.Errorf("%w: %w", ErrExpression, err), "expression", expression)
	}
	return result.(bool), nil
}

func (env Env) resolve(path string) string {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		panic(zerr.With(zerr.Wrap(ErrOutsideDirectory, ""), "path", path))
	}
	return fullPath
}

// Patch applies a diff-match-patch patch to a file below the project
// directory. It reports whether any hunk applied; already patched files
// report false.
func (env Env) Patch(path, patchText string) bool {
	fullPath := env.resolve(path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		panic(err)
	}
	patchedText, results := dmp.PatchApply(patches, string(data))

	applied := false
	for _, ok := range results {
		applied = applied || ok
	}
	if !applied || patchedText == string(data) {
		return false
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0644); err != nil {
		panic(err)
	}
	return true
}

func (env Env) ReadFile(path string) string {
	data, err := os.ReadFile(env.resolve(path))
	if err != nil {
		panic(err)
	}
	return string(data)
}

func (env Env) Exists(path string) bool {
	_, err := os.Stat(env.resolve(path))
	return err == nil
}
