// Package tui is the interactive front end: a Login screen, the TODOs List
// screen bound to a live query, and a ChangePassword screen.
package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tadalive/internal/identity"
	"github.com/Makepad-fr/tadalive/internal/listview"
	"github.com/Makepad-fr/tadalive/internal/logging"
)

// Auth is what the screens need from the identity service.
type Auth interface {
	Current(ctx context.Context) (*identity.TokenInfo, error)
	Register(ctx context.Context, email, password string) (*identity.Account, error)
	SignIn(ctx context.Context, email, password string) (*identity.TokenInfo, error)
	ChangePassword(ctx context.Context, current, next string) error
	SignOut(ctx context.Context) error
}

// Deps wires the program to its services.
type Deps struct {
	Docs       listview.Collection
	Auth       Auth
	Collection string
	Logger     *slog.Logger
}

type screen int

const (
	screenLogin screen = iota
	screenList
	screenPassword
)

func (s screen) String() string {
	switch s {
	case screenLogin:
		return "Login"
	case screenList:
		return "TODOs List"
	case screenPassword:
		return "ChangePassword"
	}
	return fmt.Sprintf("screen(%d)", int(s))
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx  context.Context
	deps Deps

	screen screen
	login  loginModel
	list   listModel
	pw     passwordModel

	width, height int
}

// New builds the root model. The first screen is the list when a session
// exists, otherwise Login.
func New(ctx context.Context, deps Deps) (Model, tea.Cmd) {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	m := Model{
		ctx:    ctx,
		deps:   deps,
		login:  newLoginModel(),
		width:  80,
		height: 24,
	}
	ti, err := deps.Auth.Current(ctx)
	if err != nil {
		m.login.err = err.Error()
	}
	if ti == nil {
		return m, nil
	}
	cmd, err := m.openList()
	if err != nil {
		m.screen = screenLogin
		m.login.err = err.Error()
		return m, nil
	}
	return m, cmd
}

func (m *Model) openList() (tea.Cmd, error) {
	opts := []listview.Option{listview.WithLogger(m.deps.Logger)}
	if m.deps.Collection != "" {
		opts = append(opts, listview.WithCollection(m.deps.Collection))
	}
	ctrl := listview.New(m.deps.Docs, m.deps.Auth, opts...)
	m.list = newListModel(m.ctx, ctrl)
	m.list.setSize(m.width, m.height)
	cmd, err := m.list.activate()
	if err != nil {
		return nil, err
	}
	m.screen = screenList
	return cmd, nil
}

func (m *Model) closeList() {
	if m.list.ctrl != nil {
		m.list.deactivate()
	}
}

// Screen names the visible destination.
func (m Model) Screen() string { return m.screen.String() }

// Controller exposes the list controller, nil before sign-in.
func (m Model) Controller() *listview.Controller { return m.list.ctrl }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.list.ctrl != nil {
			m.list.setSize(msg.Width, msg.Height)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.closeList()
			return m, tea.Quit
		}
	}

	switch m.screen {
	case screenLogin:
		if sm, ok := msg.(signedInMsg); ok && sm.err == nil {
			m.login = newLoginModel()
			cmd, err := m.openList()
			if err != nil {
				m.login.err = err.Error()
				return m, nil
			}
			m.deps.Logger.Info("signed in", "email", sm.token.Email)
			return m, cmd
		}
		var cmd tea.Cmd
		m.login, cmd = m.login.update(m.ctx, m.deps.Auth, msg)
		return m, cmd

	case screenPassword:
		// snapshots keep flowing while the list is covered
		switch msg.(type) {
		case snapshotMsg, subscriptionClosedMsg, opResultMsg:
			return m.updateList(msg)
		}
		pw, cmd, done := m.pw.update(m.ctx, m.deps.Auth, msg)
		m.pw = pw
		if done {
			if pm, ok := msg.(passwordChangedMsg); ok && pm.err == nil {
				m.list.notice = "Password changed"
			}
			m.screen = screenList
		}
		return m, cmd
	}
	return m.updateList(msg)
}

func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	lm, cmd, dest := m.list.update(msg)
	m.list = lm
	switch dest {
	case listview.DestLogin:
		m.closeList()
		m.screen = screenLogin
		m.login = newLoginModel()
		m.login.notice = "Signed out"
		return m, nil
	case listview.DestChangePassword:
		m.pw = newPasswordModel()
		m.screen = screenPassword
		return m, cmd
	}
	return m, cmd
}

func (m Model) View() string {
	switch m.screen {
	case screenLogin:
		return m.login.view(m.width)
	case screenPassword:
		return m.pw.view(m.width)
	}
	return m.list.view()
}

// Run starts the program and blocks until it exits.
func Run(ctx context.Context, deps Deps) error {
	m, initCmd := New(ctx, deps)
	p := tea.NewProgram(startModel{Model: m, init: initCmd}, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(startModel); ok {
		fm.closeList()
	} else if fm, ok := final.(Model); ok {
		fm.closeList()
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// startModel carries the command New produced into Init.
type startModel struct {
	Model
	init tea.Cmd
}

func (s startModel) Init() tea.Cmd { return s.init }

func (s startModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := s.Model.Update(msg)
	s.Model = m.(Model)
	return s, cmd
}
