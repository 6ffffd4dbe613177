// Package toposort orders items so that every item comes after the items it
// depends on.
package toposort

import (
	"fmt"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

var (
	// ErrCyclic is returned when the preconditions form a cycle.
	ErrCyclic = zerr.New("dependency cycle detected")

	// ErrDuplicateName is returned when two items share the same key.
	ErrDuplicateName = zerr.New("duplicate name")

	// ErrNonexistentDependency is returned when an item depends on a key no item has.
	ErrNonexistentDependency = zerr.New("nonexistent dependency")
)

const (
	unvisited = iota
	inProgress
	done
)

// Check validates that keys are unique and that every precondition names an
// existing item. Callers run it before PartialOrderBy.
func Check[T any, K comparable](items []T, key func(T) K, preconditions func(T) []K) error {
	seen := make(map[K]struct{}, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			return zerr.With(zerr.Wrap(ErrDuplicateName, ""), "name", fmt.Sprint(k))
		}
		seen[k] = struct{}{}
	}
	for _, item := range items {
		for _, dep := range preconditions(item) {
			if _, ok := seen[dep]; !ok {
				err := zerr.With(zerr.Wrap(ErrNonexistentDependency, ""), "name", fmt.Sprint(key(item)))
				return zerr.With(err, "dependency", fmt.Sprint(dep))
			}
		}
	}
	return nil
}

// PartialOrderBy returns every item exactly once, each one placed after all
// items named by its preconditions. Items without an ordering constraint
// between them keep their input order. Keys must be unique.
func PartialOrderBy[T any, K comparable](items []T, key func(T) K, preconditions func(T) []K) ([]T, error) {
	index := make(map[K]int, len(items))
	for i, item := range items {
		index[key(item)] = i
	}

	deps := make([][]int, len(items))
	for i, item := range items {
		for _, dep := range preconditions(item) {
			j, ok := index[dep]
			if !ok {
				err := zerr.With(zerr.Wrap(ErrNonexistentDependency, ""), "name", fmt.Sprint(key(item)))
				return nil, zerr.With(err, "dependency", fmt.Sprint(dep))
			}
			deps[i] = append(deps[i], j)
		}
		// visiting preconditions in input order keeps unrelated items stable
		slices.Sort(deps[i])
		deps[i] = slices.Compact(deps[i])
	}

	type frame struct {
		node, next int
	}

	marks := make([]int, len(items))
	ordered := make([]T, 0, len(items))
	var stack []frame

	for root := range items {
		if marks[root] != unvisited {
			continue
		}
		marks[root] = inProgress
		stack = append(stack[:0], frame{node: root})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(deps[top.node]) {
				dep := deps[top.node][top.next]
				top.next++
				switch marks[dep] {
				case inProgress:
					path := make([]int, 0, len(stack)+1)
					for _, f := range stack {
						path = append(path, f.node)
					}
					return nil, cycleError(items, key, append(path, dep))
				case unvisited:
					marks[dep] = inProgress
					stack = append(stack, frame{node: dep})
				}
				continue
			}
			marks[top.node] = done
			ordered = append(ordered, items[top.node])
			stack = stack[:len(stack)-1]
		}
	}

	return ordered, nil
}

// cycleError reports the part of path that closes the loop on its last node.
func cycleError[T any, K comparable](items []T, key func(T) K, path []int) error {
	last := path[len(path)-1]
	start := slices.Index(path, last)
	names := make([]string, 0, len(path)-start)
	for _, node := range path[start:] {
		names = append(names, fmt.Sprint(key(items[node])))
	}
	return zerr.With(zerr.Wrap(ErrCyclic, ""), "cycle", strings.Join(names, " -> "))
}
