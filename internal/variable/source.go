package variable

import "os"

// EmptySentinel stands for an empty string in sources that cannot express
// one, such as an environment variable set to nothing by a shell.
const EmptySentinel = "_EMPTY_"

// Source looks up raw variable text by name.
type Source interface {
	Lookup(name string) (string, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(name string) (string, bool)

func (f SourceFunc) Lookup(name string) (string, bool) { return f(name) }

// MapSource is a Source backed by a map.
type MapSource map[string]string

func (m MapSource) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Environment reads the process environment.
func Environment() Source {
	return SourceFunc(os.LookupEnv)
}

// Overlay consults sources in order and returns the first hit.
func Overlay(sources ...Source) Source {
	return SourceFunc(func(name string) (string, bool) {
		for _, s := range sources {
			if s == nil {
				continue
			}
			if v, ok := s.Lookup(name); ok {
				return v, true
			}
		}
		return "", false
	})
}

func lookupEnv(src Source, name string) (string, bool) {
	if src == nil {
		return "", false
	}
	v, ok := src.Lookup(name)
	if ok && v == EmptySentinel {
		v = ""
	}
	return v, ok
}
