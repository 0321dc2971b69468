package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/ffibridge/binding"
	"github.com/wippyai/ffibridge/config"
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2E7D8C")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	asyncStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD580")).
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2E7D8C"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateCalling
	stateShowResult
)

type interactiveModel struct {
	err      error
	cfg      *config.Config
	rt       *runtime.Runtime
	result   string
	funcs    []*binding.Signature
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

func newInteractiveModel(cfg *config.Config) *interactiveModel {
	return &interactiveModel{
		cfg:   cfg,
		state: stateSelectFunc,
	}
}

type loadedMsg struct {
	err   error
	rt    *runtime.Runtime
	funcs []*binding.Signature
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	if m.cfg.Library.Manifest == "" {
		return loadedMsg{err: errors.InvalidInput(errors.PhaseConfig, "interactive mode needs a manifest (-manifest)")}
	}

	rt, err := runtime.FromConfig(context.Background(), m.cfg)
	if err != nil {
		return loadedMsg{err: err}
	}

	manifest := rt.Manifest()
	funcs := make([]*binding.Signature, 0, manifest.Len())
	for _, name := range manifest.Names() {
		sig, _ := manifest.Lookup(name)
		funcs = append(funcs, sig)
	}
	return loadedMsg{rt: rt, funcs: funcs}
}

func (m *interactiveModel) close() {
	if m.rt != nil {
		_ = m.rt.Close(context.Background())
		m.rt = nil
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if msg.String() == "q" && m.state == stateInputArgs {
				break
			}
			m.close()
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					m.state = stateCalling
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				m.state = stateCalling
				return m, m.callFunction

			case stateShowResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs, stateShowResult:
				m.reset()
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.funcs = msg.funcs
		m.rt = msg.rt

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectFunc
	m.inputs = nil
	m.result = ""
	m.err = nil
}

func (m *interactiveModel) prepareInputs() {
	sig := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(sig.Params))
	for i, p := range sig.Params {
		ti := textinput.New()
		ti.Placeholder = binding.TypeString(p.Type)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.rt == nil {
		return callResultMsg{err: errors.InvalidInput(errors.PhaseCall, "library not loaded")}
	}

	sig := m.funcs[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = input.Value()
	}

	result, err := m.rt.InvokeText(context.Background(), sig.Name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	if sig.Result == nil {
		return callResultMsg{result: "(no result)"}
	}
	text, err := binding.Format(result)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: strings.TrimSpace(text)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.rt == nil {
		return "Loading library..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("FFI Bridge"))
	b.WriteString(" ")
	b.WriteString(m.cfg.Library.Path)
	b.WriteString(" ")
	b.WriteString(typeStyle.Render("[" + m.cfg.Library.Namespace + "]"))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, sig := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.formatFunc(sig)))
			} else {
				b.WriteString("  " + m.formatFunc(sig))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		sig := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(sig.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(binding.TypeString(sig.Params[i].Type)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("values are YAML • tab next field • enter call • esc back"))

	case stateCalling:
		sig := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s...\n", funcStyle.Render(sig.Name)))

	case stateShowResult:
		sig := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(sig.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(sig *binding.Signature) string {
	params := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = p.Name + ": " + typeStyle.Render(binding.TypeString(p.Type))
	}
	result := ""
	if sig.Result != nil {
		result = " -> " + typeStyle.Render(binding.TypeString(sig.Result))
	}
	prefix := ""
	if sig.Async {
		prefix = asyncStyle.Render("async ")
	}
	return prefix + funcStyle.Render(sig.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(cfg *config.Config) error {
	model := newInteractiveModel(cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	model.close()
	return err
}
