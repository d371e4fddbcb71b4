package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tadalive/internal/ui"
)

type passwordChangedMsg struct{ err error }

type passwordModel struct {
	inputs []textinput.Model // current, new, confirm
	focus  int
	busy   bool
	err    string
}

func newPasswordModel() passwordModel {
	prompts := []string{"Current  ", "New      ", "Confirm  "}
	inputs := make([]textinput.Model, len(prompts))
	for i, p := range prompts {
		ti := textinput.New()
		ti.Prompt = p
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
		ti.CharLimit = 128
		inputs[i] = ti
	}
	inputs[0].Focus()
	return passwordModel{inputs: inputs}
}

func (m *passwordModel) setFocus(i int) tea.Cmd {
	m.focus = (i + len(m.inputs)) % len(m.inputs)
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == m.focus {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

func changePassword(ctx context.Context, auth Auth, current, next string) tea.Cmd {
	return func() tea.Msg {
		return passwordChangedMsg{err: auth.ChangePassword(ctx, current, next)}
	}
}

// update returns done=true when the screen should close.
func (m passwordModel) update(ctx context.Context, auth Auth, msg tea.Msg) (passwordModel, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case passwordChangedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil, false
		}
		return m, nil, true
	case tea.KeyMsg:
		if m.busy {
			return m, nil, false
		}
		switch msg.String() {
		case "esc":
			return m, nil, true
		case "tab", "down":
			return m, m.setFocus(m.focus + 1), false
		case "shift+tab", "up":
			return m, m.setFocus(m.focus - 1), false
		case "enter":
			if m.focus < len(m.inputs)-1 {
				return m, m.setFocus(m.focus + 1), false
			}
			current, next, confirm := m.inputs[0].Value(), m.inputs[1].Value(), m.inputs[2].Value()
			if next != confirm {
				m.err = "Passwords do not match"
				return m, nil, false
			}
			m.busy = true
			m.err = ""
			return m, changePassword(ctx, auth, current, next), false
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd, false
}

func (m passwordModel) view(width int) string {
	t := ui.Current()
	lines := []string{appBar("Change password", width-4), ""}
	for _, in := range m.inputs {
		lines = append(lines, in.View())
	}
	lines = append(lines, "")
	if m.busy {
		lines = append(lines, t.Muted.Render("Saving..."))
	} else if m.err != "" {
		lines = append(lines, t.Error.Render("✖ "+m.err))
	}
	lines = append(lines, t.Help.Render("enter next/submit • esc back"))
	return panelString(strings.Join(lines, "\n"))
}
