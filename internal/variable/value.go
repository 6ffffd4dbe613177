package variable

import (
	"fmt"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// ErrInvalidOperation is raised (by panic) when a Spec or Value of an unknown
// kind reaches code that switches over the known kinds.
var ErrInvalidOperation = zerr.New("invalid operation")

func invalidOperation(what string, v any) error {
	return zerr.With(zerr.Wrap(ErrInvalidOperation, "unknown "+what), "type", fmt.Sprintf("%T", v))
}

// Value is a resolved variable value. The concrete types below are the only
// implementations.
type Value interface {
	fmt.Stringer
	isValue()
}

type (
	BoolValue      bool
	IntValue       int
	StringValue    string
	PathValue      string
	StringSetValue []string
)

func (BoolValue) isValue()      {}
func (IntValue) isValue()       {}
func (StringValue) isValue()    {}
func (PathValue) isValue()      {}
func (StringSetValue) isValue() {}

func (v BoolValue) String() string      { return strconv.FormatBool(bool(v)) }
func (v IntValue) String() string       { return strconv.Itoa(int(v)) }
func (v StringValue) String() string    { return string(v) }
func (v PathValue) String() string      { return string(v) }
func (v StringSetValue) String() string { return strings.Join(v, " ") }

// Equal reports whether a and b hold the same kind and contents.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case BoolValue:
		b, ok := b.(BoolValue)
		return ok && a == b
	case IntValue:
		b, ok := b.(IntValue)
		return ok && a == b
	case StringValue:
		b, ok := b.(StringValue)
		return ok && a == b
	case PathValue:
		b, ok := b.(PathValue)
		return ok && a == b
	case StringSetValue:
		b, ok := b.(StringSetValue)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		panic(invalidOperation("value", a))
	}
}

// Values is a snapshot of resolved values keyed by variable name.
type Values map[string]Value

// String returns the textual form of name, or "" when it is not resolved.
func (v Values) String(name string) string {
	if val, ok := v[name]; ok {
		return val.String()
	}
	return ""
}

// Bool returns the boolean value of name, false when absent or of another kind.
func (v Values) Bool(name string) bool {
	b, _ := v[name].(BoolValue)
	return bool(b)
}

// Int returns the integer value of name, 0 when absent or of another kind.
func (v Values) Int(name string) int {
	i, _ := v[name].(IntValue)
	return int(i)
}

// Strings returns the set value of name, nil when absent or of another kind.
func (v Values) Strings(name string) []string {
	s, _ := v[name].(StringSetValue)
	return s
}

// Map converts the snapshot into plain Go values for expression evaluation.
func (v Values) Map() map[string]any {
	m := make(map[string]any, len(v))
	for name, val := range v {
		switch val := val.(type) {
		case BoolValue:
			m[name] = bool(val)
		case IntValue:
			m[name] = int(val)
		case StringValue:
			m[name] = string(val)
		case PathValue:
			m[name] = string(val)
		case StringSetValue:
			m[name] = []string(val)
		default:
			panic(invalidOperation("value", val))
		}
	}
	return m
}
