package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tadalive/internal/identity"
	"github.com/Makepad-fr/tadalive/internal/ui"
)

type signedInMsg struct {
	token *identity.TokenInfo
	err   error
}

type loginModel struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	busy     bool
	err      string
	notice   string
}

func newLoginModel() loginModel {
	email := textinput.New()
	email.Prompt = "Email    "
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Focus()

	pw := textinput.New()
	pw.Prompt = "Password "
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.CharLimit = 128

	return loginModel{email: email, password: pw}
}

func (m *loginModel) setFocus(i int) tea.Cmd {
	m.focus = i
	if i == 0 {
		m.password.Blur()
		return m.email.Focus()
	}
	m.email.Blur()
	return m.password.Focus()
}

func signIn(ctx context.Context, auth Auth, email, password string, register bool) tea.Cmd {
	return func() tea.Msg {
		if register {
			if _, err := auth.Register(ctx, email, password); err != nil {
				return signedInMsg{err: err}
			}
		}
		ti, err := auth.SignIn(ctx, email, password)
		return signedInMsg{token: ti, err: err}
	}
}

func (m loginModel) update(ctx context.Context, auth Auth, msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case signedInMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err.Error()
		}
		return m, nil
	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "tab", "shift+tab", "up", "down":
			return m, m.setFocus(1 - m.focus)
		case "enter", "ctrl+n":
			if m.focus == 0 && msg.String() == "enter" {
				return m, m.setFocus(1)
			}
			email := strings.TrimSpace(m.email.Value())
			if email == "" || m.password.Value() == "" {
				m.err = "Email and password are required"
				return m, nil
			}
			m.busy = true
			m.err = ""
			return m, signIn(ctx, auth, email, m.password.Value(), msg.String() == "ctrl+n")
		}
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m loginModel) view(width int) string {
	t := ui.Current()
	lines := []string{
		appBar("Login", width-4),
		"",
		m.email.View(),
		m.password.View(),
		"",
	}
	switch {
	case m.busy:
		lines = append(lines, t.Muted.Render("Signing in..."))
	case m.err != "":
		lines = append(lines, t.Error.Render("✖ "+m.err))
	case m.notice != "":
		lines = append(lines, t.Success.Render(m.notice))
	}
	lines = append(lines, t.Help.Render("enter sign in • ctrl+n register • tab switch field • ctrl+c quit"))
	return panelString(strings.Join(lines, "\n"))
}
