// Package prompt asks the user for the variables a resolution pass could not
// settle, rerunning the pass after every answer.
package prompt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/qobs-build/qgen/internal/variable"
	"go.trai.ch/zerr"
)

var ErrCancelled = zerr.New("prompt cancelled")

// Resolver is the part of variable.Resolver the prompt drives.
type Resolver interface {
	Set(name, raw string) error
	Resolve() *variable.Pass
}

// Model is the bubbletea model of the prompt.
type Model struct {
	resolver  Resolver
	pass      *variable.Pass
	focus     string
	input     textinput.Model
	done      bool
	cancelled bool
	err       error
}

// New returns a model showing pass, focused on its first invalid variable.
func New(r Resolver, pass *variable.Pass) Model {
	m := Model{resolver: r, pass: pass, input: textinput.New()}
	m.input.CharLimit = 1024
	m.input.ShowSuggestions = true
	m.done = pass.Complete()
	m.focusOn(m.firstInvalid())
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.focus != "" {
				if err := m.resolver.Set(m.focus, m.input.Value()); err != nil {
					m.err = err
					return m, tea.Quit
				}
			}
			m.pass = m.resolver.Resolve()
			if m.pass.Complete() {
				m.done = true
				return m, tea.Quit
			}
			m.focusOn(m.firstInvalid())
			return m, textinput.Blink
		case tea.KeyShiftTab:
			m.focusOn(m.nextEditable())
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var sb strings.Builder
	for _, st := range m.pass.Items {
		if st.Hidden && st.Name != m.focus {
			continue
		}
		if st.Name == m.focus {
			fmt.Fprintf(&sb, "%s %s: %s\n", focusedStyle.Render(">"), focusedStyle.Render(st.Name), m.input.View())
			if opts := variable.Options(st.Spec); len(opts) > 0 {
				fmt.Fprintf(&sb, "    %s\n", helpStyle.Render("options: "+strings.Join(opts, " ")))
			}
			if st.Message != "" {
				fmt.Fprintf(&sb, "    %s\n", invalidStyle.Render(st.Message))
			}
			continue
		}
		switch st.State {
		case variable.StateValid:
			fmt.Fprintf(&sb, "%s %s: %s\n", validStyle.Render("✓"), st.Name, st.Text)
		case variable.StateInvalid:
			fmt.Fprintf(&sb, "%s %s: %s %s\n", invalidStyle.Render("✗"), st.Name, st.Text, invalidStyle.Render(st.Message))
		default:
			fmt.Fprintf(&sb, "%s\n", blockedStyle.Render("· "+st.Name))
		}
	}
	sb.WriteString(helpStyle.Render("enter: apply  shift+tab: next variable  tab: complete  esc: cancel"))
	sb.WriteByte('\n')
	return sb.String()
}

// Pass returns the latest resolution pass.
func (m Model) Pass() *variable.Pass {
	return m.pass
}

func (m *Model) focusOn(name string) {
	m.focus = name
	m.input.Reset()
	m.input.Blur()
	if name == "" {
		return
	}
	st, _ := m.pass.Lookup(name)
	m.input.SetValue(st.Text)
	m.input.Placeholder = variable.Kind(st.Spec)
	m.input.EchoMode = textinput.EchoNormal
	if variable.IsPassword(st.Spec) {
		m.input.EchoMode = textinput.EchoPassword
	}
	m.input.SetSuggestions(variable.Options(st.Spec))
	m.input.Focus()
}

func (m Model) firstInvalid() string {
	for _, st := range m.pass.Items {
		if st.State == variable.StateInvalid {
			return st.Name
		}
	}
	return ""
}

// nextEditable returns the visible variable after the focused one that takes
// input, wrapping around.
func (m Model) nextEditable() string {
	var editable []string
	for _, st := range m.pass.Items {
		if st.Hidden || st.Spec == nil {
			continue
		}
		switch st.Spec.(type) {
		case variable.FixedSpec, variable.NotApplySpec:
			continue
		}
		editable = append(editable, st.Name)
	}
	if len(editable) == 0 {
		return m.focus
	}
	for i, name := range editable {
		if name == m.focus {
			return editable[(i+1)%len(editable)]
		}
	}
	return editable[0]
}

// Run prompts until pass is complete. It returns the final pass, or
// ErrCancelled when the user gives up.
func Run(r Resolver, pass *variable.Pass) (*variable.Pass, error) {
	if pass.Complete() {
		return pass, nil
	}
	result, err := tea.NewProgram(New(r, pass)).Run()
	if err != nil {
		return nil, zerr.Wrap(err, "prompt failed")
	}
	final, ok := result.(Model)
	switch {
	case !ok:
		return nil, zerr.Wrap(ErrCancelled, "")
	case final.err != nil:
		return nil, final.err
	case final.cancelled || !final.done:
		return final.pass, zerr.Wrap(ErrCancelled, "")
	}
	return final.pass, nil
}
