// Package replay renders the manual-override memory as a shell script that
// reproduces a generation run, and reads such scripts back.
package replay

import (
	"bufio"
	"io"
	"strings"

	"github.com/qobs-build/qgen/internal/variable"
	"go.trai.ch/zerr"
)

// Dialect is the shell a replay script is written for.
type Dialect string

const (
	Sh  Dialect = "sh"
	Cmd Dialect = "cmd"
)

var ErrUnknownDialect = zerr.New("unknown shell dialect")

// ParseDialect accepts "sh" or "cmd".
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case Sh, Cmd:
		return Dialect(s), nil
	}
	return "", zerr.With(zerr.Wrap(ErrUnknownDialect, ""), "dialect", s)
}

// FileName is the script file name used in the build directory.
func (d Dialect) FileName() string {
	if d == Cmd {
		return "qgen.cmd"
	}
	return "qgen.sh"
}

// Render writes one assignment per override, preceded by the allowed options
// when there are any, and a final line that reruns the generator quietly with
// the script itself as its first argument.
func Render(d Dialect, overrides []variable.Override) string {
	var sb strings.Builder
	comment := "#"
	if d == Cmd {
		comment = "rem"
		sb.WriteString("@echo off\r\nsetlocal\r\n")
	} else {
		sb.WriteString("#!/bin/sh\n")
	}
	eol := "\n"
	if d == Cmd {
		eol = "\r\n"
	}

	for _, o := range overrides {
		if len(o.Options) > 0 {
			sb.WriteString(comment + " " + o.Name + ": " + strings.Join(o.Options, " ") + eol)
		}
		value := o.Value
		if value == "" {
			value = variable.EmptySentinel
		}
		if d == Cmd {
			sb.WriteString(`set "` + o.Name + "=" + strings.ReplaceAll(value, "%", "%%") + `"` + eol)
		} else {
			sb.WriteString("export " + o.Name + "=" + shellQuote(value) + eol)
		}
	}

	if d == Cmd {
		sb.WriteString(`qgen --quiet "%~f0" %*` + eol)
	} else {
		sb.WriteString(`qgen --quiet "$0" "$@"` + eol)
	}
	return sb.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Parse reads KEY=VALUE assignments from a replay script of either dialect.
// Comments and lines that are not assignments are skipped. Values are
// returned as written, so EmptySentinel is kept for the resolver to expand.
func Parse(r io.Reader) (variable.MapSource, error) {
	vars := make(variable.MapSource)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "::") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "rem ") {
			continue
		}

		batch := false
		switch {
		case strings.HasPrefix(line, "export "):
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		case strings.HasPrefix(strings.ToLower(line), "set "):
			batch = true
			line = strings.TrimSpace(line[len("set "):])
			if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
				line = line[1 : len(line)-1]
			}
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok || !isName(key) {
			continue
		}
		if batch {
			// %% is a literal percent sign in a batch file
			vars[key] = strings.ReplaceAll(value, "%%", "%")
			continue
		}
		vars[key] = unquote(value)
	}
	if err := sc.Err(); err != nil {
		return nil, zerr.Wrap(err, "failed to read replay script")
	}
	return vars, nil
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// unquote handles single quoted sh words, including the '\'' escape, and
// plain double quotes.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if !strings.HasPrefix(s, "'") {
		return s
	}

	var sb strings.Builder
	quoted := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			quoted = !quoted
		case c == '\\' && !quoted && i+1 < len(s):
			i++
			sb.WriteByte(s[i])
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
