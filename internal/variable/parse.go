package variable

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	msgPathEmpty       = "Path is empty."
	msgDirectoryAbsent = "Directory not exist."
	msgFileAbsent      = "File not exist."
)

// parsed is the outcome of interpreting raw input against a spec. text is
// the form persisted in memories and replay scripts.
type parsed struct {
	value   Value
	text    string
	ok      bool
	message string
}

// parse interprets raw against s and runs the validator. Malformed booleans,
// integers and selections fall back to the spec default.
func parse(s Spec, raw string) parsed {
	switch s := s.(type) {
	case NotApplySpec:
		return parsed{value: s.Value, text: textOf(s.Value), ok: true}
	case FixedSpec:
		return parsed{value: s.Value, text: textOf(s.Value), ok: true}
	case BooleanSpec:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			b = s.Default
		}
		return parsed{value: BoolValue(b), text: strconv.FormatBool(b), ok: true}
	case IntegerSpec:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			i = s.Default
		}
		return validated(parsed{value: IntValue(i), text: strconv.Itoa(i)}, s.Validator, i)
	case StringSpec:
		return validated(parsed{value: StringValue(raw), text: raw}, s.Validator, raw)
	case SelectionSpec:
		choice := raw
		if !slices.Contains(s.Options, choice) {
			choice = s.Default
		}
		value := choice
		if s.PostMapper != nil {
			value = s.PostMapper(choice)
		}
		return validated(parsed{value: StringValue(value), text: choice}, s.Validator, choice)
	case PathSpec:
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return parsed{message: msgPathEmpty}
		}
		path, err := filepath.Abs(raw)
		if err != nil {
			return parsed{message: err.Error()}
		}
		p := parsed{value: PathValue(path), text: path}
		if s.Validator != nil {
			return validated(p, s.Validator, path)
		}
		return validated(p, existenceValidator(s.IsDirectory), path)
	case MultiSelectionSpec:
		var chosen []string
		for _, word := range strings.Fields(raw) {
			if slices.Contains(chosen, word) {
				continue
			}
			if len(s.Options) > 0 && !slices.Contains(s.Options, word) {
				continue
			}
			chosen = append(chosen, word)
		}
		set := StringSetValue(chosen)
		return validated(parsed{value: set, text: set.String()}, s.Validator, []string(set))
	default:
		panic(invalidOperation("spec", s))
	}
}

func validated[T any](p parsed, validate Validator[T], v T) parsed {
	p.ok = true
	if validate != nil {
		p.ok, p.message = validate(v)
	}
	return p
}

func existenceValidator(isDirectory bool) Validator[string] {
	return func(path string) (bool, string) {
		stat, err := os.Stat(path)
		if isDirectory {
			if err != nil || !stat.IsDir() {
				return false, msgDirectoryAbsent
			}
			return true, ""
		}
		if err != nil || stat.IsDir() {
			return false, msgFileAbsent
		}
		return true, ""
	}
}
