package variable

import (
	"strconv"
	"strings"
)

// Validator checks a parsed value and returns a message when it is rejected.
type Validator[T any] func(T) (ok bool, message string)

// Spec describes the domain, default and validation of one variable. The
// concrete types below are the only implementations.
type Spec interface {
	isSpec()
}

// NotApplySpec marks a variable that does not apply in the current context.
// Value is used as is.
type NotApplySpec struct {
	Value Value
}

// FixedSpec is a variable with a single possible value.
type FixedSpec struct {
	Value Value
}

type BooleanSpec struct {
	Default bool
}

type IntegerSpec struct {
	Default   int
	Validator Validator[int]
}

type StringSpec struct {
	Default    string
	IsPassword bool
	Validator  Validator[string]
}

// SelectionSpec accepts one of Options. PostMapper, when set, maps the chosen
// option to the value handed to consumers.
type SelectionSpec struct {
	Default    string
	Options    []string
	Validator  Validator[string]
	PostMapper func(string) string
}

// PathSpec accepts a filesystem path. Without a Validator the path must exist
// as a directory (IsDirectory) or as a file.
type PathSpec struct {
	Default     string
	IsDirectory bool
	Validator   Validator[string]
}

// MultiSelectionSpec accepts any subset of Options, written as whitespace
// separated words.
type MultiSelectionSpec struct {
	Defaults  []string
	Options   []string
	Validator Validator[[]string]
}

func (NotApplySpec) isSpec()       {}
func (FixedSpec) isSpec()          {}
func (BooleanSpec) isSpec()        {}
func (IntegerSpec) isSpec()        {}
func (StringSpec) isSpec()         {}
func (SelectionSpec) isSpec()      {}
func (PathSpec) isSpec()           {}
func (MultiSelectionSpec) isSpec() {}

// Kind returns a short human readable name of the spec kind.
func Kind(s Spec) string {
	switch s.(type) {
	case NotApplySpec:
		return "n/a"
	case FixedSpec:
		return "fixed"
	case BooleanSpec:
		return "bool"
	case IntegerSpec:
		return "int"
	case StringSpec:
		return "string"
	case SelectionSpec:
		return "selection"
	case PathSpec:
		return "path"
	case MultiSelectionSpec:
		return "multiselection"
	default:
		panic(invalidOperation("spec", s))
	}
}

// Options returns the allowed choices of selection specs, nil for others.
func Options(s Spec) []string {
	switch s := s.(type) {
	case SelectionSpec:
		return s.Options
	case MultiSelectionSpec:
		return s.Options
	default:
		return nil
	}
}

// IsPassword reports whether the spec asks for hidden input.
func IsPassword(s Spec) bool {
	str, ok := s.(StringSpec)
	return ok && str.IsPassword
}

// DefaultText returns the default of s in the textual form Parse accepts.
func DefaultText(s Spec) string {
	switch s := s.(type) {
	case NotApplySpec:
		return textOf(s.Value)
	case FixedSpec:
		return textOf(s.Value)
	case BooleanSpec:
		return strconv.FormatBool(s.Default)
	case IntegerSpec:
		return strconv.Itoa(s.Default)
	case StringSpec:
		return s.Default
	case SelectionSpec:
		return s.Default
	case PathSpec:
		return s.Default
	case MultiSelectionSpec:
		return strings.Join(s.Defaults, " ")
	default:
		panic(invalidOperation("spec", s))
	}
}

func textOf(v Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}
