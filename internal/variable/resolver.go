package variable

import (
	"fmt"
	"maps"
	"slices"

	"github.com/qobs-build/qgen/internal/toposort"
	"go.trai.ch/zerr"
)

var (
	// ErrStructural marks declaration errors: duplicate names, unknown
	// dependencies and dependency cycles.
	ErrStructural = zerr.New("invalid variable declarations")

	// ErrUnknownVariable is returned when an edit names no declared variable.
	ErrUnknownVariable = zerr.New("unknown variable")
)

// Item declares one variable. Spec computes the variable's spec from the
// values resolved so far; it is only called once every name in Dependencies
// is valid. Consume, when set, receives the value each time it resolves.
type Item struct {
	Name         string
	Dependencies []string
	Hidden       bool
	Spec         func(Values) Spec
	Consume      func(Value)
}

// State is the resolution state of one item within a pass.
type State int

const (
	StateUnvalidated State = iota
	StateBlocked
	StateValid
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUnvalidated:
		return "unvalidated"
	case StateBlocked:
		return "blocked"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the outcome of resolving one item.
type Status struct {
	Name   string
	Hidden bool
	State  State
	// Spec is nil while the item is blocked.
	Spec Spec
	// Value is set only when State is StateValid.
	Value Value
	// Text is the raw input the item was resolved from.
	Text    string
	Message string
}

// Pass is the result of one full resolution pass, in dependency order.
type Pass struct {
	Items []Status
}

// Complete reports whether every item is valid.
func (p *Pass) Complete() bool {
	return len(p.Pending()) == 0
}

// Pending returns the names of items that are not valid.
func (p *Pass) Pending() []string {
	var names []string
	for _, st := range p.Items {
		if st.State != StateValid {
			names = append(names, st.Name)
		}
	}
	return names
}

// Lookup returns the status of name.
func (p *Pass) Lookup(name string) (Status, bool) {
	for _, st := range p.Items {
		if st.Name == name {
			return st, true
		}
	}
	return Status{}, false
}

// Override is one entry of the manual-override memory.
type Override struct {
	Name  string
	Value string
	// Options lists the allowed choices of selection variables.
	Options []string
}

// Resolver runs resolution passes over a fixed, dependency ordered list of
// items. Raw input is taken from edits, then the manual-override memory,
// then env, then the spec default.
type Resolver struct {
	items  []Item
	env    Source
	edits  map[string]string
	manual map[string]string
	memory Values
	last   *Pass
}

// NewResolver validates and orders items. It fails with ErrStructural when
// names are duplicated, a dependency is undeclared or dependencies cycle.
func NewResolver(items []Item, env Source) (*Resolver, error) {
	name := func(it Item) string { return it.Name }
	deps := func(it Item) []string { return it.Dependencies }

	if err := toposort.Check(items, name, deps); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStructural, err)
	}
	ordered, err := toposort.PartialOrderBy(items, name, deps)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStructural, err)
	}

	return &Resolver{
		items:  ordered,
		env:    env,
		edits:  make(map[string]string),
		manual: make(map[string]string),
		memory: make(Values),
	}, nil
}

// Order returns item names in resolution order.
func (r *Resolver) Order() []string {
	names := make([]string, len(r.items))
	for i, it := range r.items {
		names[i] = it.Name
	}
	return names
}

// Set records raw input for name. It takes precedence over every other
// source on the next pass.
func (r *Resolver) Set(name, raw string) error {
	if !slices.ContainsFunc(r.items, func(it Item) bool { return it.Name == name }) {
		return zerr.With(zerr.Wrap(ErrUnknownVariable, ""), "name", name)
	}
	r.edits[name] = raw
	return nil
}

// Restore loads a previously persisted manual-override memory, such as the
// assignments of a replay script. Unknown names are ignored. Restored entries
// are pruned like any other on the next pass.
func (r *Resolver) Restore(src MapSource) {
	for _, it := range r.items {
		v, ok := src[it.Name]
		if !ok {
			continue
		}
		if v == EmptySentinel {
			v = ""
		}
		r.manual[it.Name] = v
	}
}

// Memory returns every value that resolved in the last pass.
func (r *Resolver) Memory() Values {
	return maps.Clone(r.memory)
}

// Overrides returns the manual-override memory in resolution order: values
// that differ from what the environment, or failing that the default, would
// have produced.
func (r *Resolver) Overrides() []Override {
	var out []Override
	for _, it := range r.items {
		v, ok := r.manual[it.Name]
		if !ok {
			continue
		}
		o := Override{Name: it.Name, Value: v}
		if r.last != nil {
			if st, ok := r.last.Lookup(it.Name); ok && st.Spec != nil {
				o.Options = Options(st.Spec)
			}
		}
		out = append(out, o)
	}
	return out
}

// Resolve runs a full pass over all items. Every item is reconsidered, since
// a spec may change whenever any earlier value changes.
func (r *Resolver) Resolve() *Pass {
	pass := &Pass{Items: make([]Status, 0, len(r.items))}
	r.memory = make(Values, len(r.items))

	for _, it := range r.items {
		st := Status{Name: it.Name, Hidden: it.Hidden, State: StateUnvalidated}

		if !r.satisfied(it) {
			st.State = StateBlocked
			pass.Items = append(pass.Items, st)
			continue
		}

		spec := it.Spec(maps.Clone(r.memory))
		st.Spec = spec
		st.Text = r.input(it.Name, spec)

		res := parse(spec, st.Text)
		if res.ok {
			st.State = StateValid
			st.Value = res.value
			r.memory[it.Name] = res.value
			r.remember(it.Name, spec, res)
			if it.Consume != nil {
				it.Consume(res.value)
			}
		} else {
			st.State = StateInvalid
			st.Message = res.message
			delete(r.manual, it.Name)
		}
		pass.Items = append(pass.Items, st)
	}

	r.last = pass
	return pass
}

func (r *Resolver) satisfied(it Item) bool {
	for _, dep := range it.Dependencies {
		if _, ok := r.memory[dep]; !ok {
			return false
		}
	}
	return true
}

func (r *Resolver) input(name string, spec Spec) string {
	if v, ok := r.edits[name]; ok {
		return v
	}
	if v, ok := r.manual[name]; ok {
		return v
	}
	if v, ok := lookupEnv(r.env, name); ok {
		return v
	}
	return DefaultText(spec)
}

// remember updates the manual-override memory for a valid value.
func (r *Resolver) remember(name string, spec Spec, res parsed) {
	switch spec.(type) {
	case NotApplySpec, FixedSpec:
		delete(r.manual, name)
		return
	}

	baseline, ok := lookupEnv(r.env, name)
	if !ok {
		baseline = DefaultText(spec)
	}
	if base := parse(spec, baseline); base.value != nil && base.text == res.text {
		delete(r.manual, name)
		return
	}
	r.manual[name] = res.text
}
