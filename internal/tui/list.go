package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tadalive/internal/docstore"
	"github.com/Makepad-fr/tadalive/internal/listview"
	"github.com/Makepad-fr/tadalive/internal/model"
	"github.com/Makepad-fr/tadalive/internal/ui"
)

// listItem adapts model.Todo to bubbles/list.Item
type listItem struct {
	model.Todo
}

func (i listItem) FilterValue() string { return i.Title }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	t := ui.Current()

	box := t.Muted.Render(t.BoxUnchecked)
	text := it.Title
	if it.Complete {
		box = t.Success.Render(t.BoxChecked)
		text = t.Done.Render(text)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = t.Selected.Render(">") + " "
	}
	fmt.Fprint(w, prefix+box+" "+text)
}

type listMode int

const (
	modeBrowse listMode = iota
	modeAdding
	modeEditing
	modeConfirmDelete
	modeMenu
)

var menuEntries = []string{"Sign out", "Change password"}

// Messages flowing into the list screen.
type (
	snapshotMsg struct {
		gen  int
		snap docstore.Snapshot
	}
	subscriptionClosedMsg struct{ gen int }
	opResultMsg           struct{ res listview.Result }
)

type listKeys struct {
	toggle, add, edit, remove, menu, quit key.Binding
}

func newListKeys() listKeys {
	return listKeys{
		toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle")),
		add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		edit:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		remove: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		menu:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "menu")),
		quit:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	}
}

type listModel struct {
	ctx  context.Context
	ctrl *listview.Controller
	gen  int // bumped on every activation so stale waits are ignored

	list    list.Model
	draft   textinput.Model // "New Todo"
	edit    textinput.Model
	spinner spinner.Model
	keys    listKeys

	mode      listMode
	confirmID string
	confirmT  string
	menuIndex int
	inputErr  string // last add/edit validation error
	notice    string

	width, height int
}

func newListModel(ctx context.Context, ctrl *listview.Controller) listModel {
	keys := newListKeys()

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.SetStatusBarItemName("item", "items")
	l.Styles.HelpStyle = ui.Current().Help
	l.Styles.PaginationStyle = ui.Current().Help
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.toggle, keys.add, keys.edit, keys.remove, keys.menu, keys.quit}
	}
	l.AdditionalFullHelpKeys = l.AdditionalShortHelpKeys

	draft := textinput.New()
	draft.Prompt = "> "
	draft.Placeholder = "New Todo"
	draft.CharLimit = 200

	edit := textinput.New()
	edit.Prompt = "> "
	edit.Placeholder = "Edit item title..."
	edit.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := listModel{
		ctx:     ctx,
		ctrl:    ctrl,
		list:    l,
		draft:   draft,
		edit:    edit,
		spinner: sp,
		keys:    keys,
	}
	m.setSize(80, 24)
	return m
}

// activate opens the live query and starts waiting for snapshots.
func (m *listModel) activate() (tea.Cmd, error) {
	if err := m.ctrl.Activate(m.ctx); err != nil {
		return nil, err
	}
	m.gen++
	return tea.Batch(m.waitForSnapshot(), m.spinner.Tick), nil
}

func (m *listModel) deactivate() {
	m.ctrl.Deactivate()
	m.gen++
}

func (m listModel) waitForSnapshot() tea.Cmd {
	ch, gen := m.ctrl.Snapshots(), m.gen
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{gen: gen}
		}
		return snapshotMsg{gen: gen, snap: s}
	}
}

func (m listModel) runOp(op listview.Op) tea.Cmd {
	if op == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		r, _ := op.Run(ctx)
		return opResultMsg{res: r}
	}
}

func (m *listModel) setSize(w, h int) {
	m.width, m.height = w, h
	// app bar, input box (3 rows + caption), status, panel border
	listHeight := h - 9
	if listHeight < 3 {
		listHeight = 3
	}
	m.list.SetSize(w-4, listHeight)
	m.draft.Width = w - 10
	m.edit.Width = w - 10
}

// syncItems copies the controller's list into the widget, keeping the
// cursor in range.
func (m *listModel) syncItems() tea.Cmd {
	items := m.ctrl.Items()
	li := make([]list.Item, 0, len(items))
	for _, it := range items {
		li = append(li, listItem{Todo: it})
	}
	idx := m.list.Index()
	cmd := m.list.SetItems(li)
	if idx >= len(li) {
		idx = len(li) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
	return cmd
}

func (m listModel) selected() (model.Todo, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Todo{}, false
	}
	return it.Todo, true
}

// update handles one message. A non-empty destination asks the app to
// navigate away.
func (m listModel) update(msg tea.Msg) (listModel, tea.Cmd, listview.Destination) {
	switch msg := msg.(type) {
	case snapshotMsg:
		if msg.gen != m.gen || !m.ctrl.Active() {
			return m, nil, listview.DestNone
		}
		m.ctrl.ApplySnapshot(msg.snap)
		return m, tea.Batch(m.syncItems(), m.waitForSnapshot()), listview.DestNone

	case subscriptionClosedMsg:
		return m, nil, listview.DestNone

	case opResultMsg:
		dest := m.ctrl.Settle(msg.res)
		if _, editing := m.ctrl.Editing(); !editing && m.mode == modeEditing {
			m.mode = modeBrowse
			m.edit.Blur()
			m.edit.SetValue("")
		}
		return m, nil, dest

	case spinner.TickMsg:
		if !m.ctrl.Loading() {
			return m, nil, listview.DestNone
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd, listview.DestNone

	case tea.KeyMsg:
		switch m.mode {
		case modeAdding:
			return m.updateAdding(msg)
		case modeEditing:
			return m.updateEditing(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		case modeMenu:
			return m.updateMenu(msg)
		}
		return m.updateBrowse(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd, listview.DestNone
}

func (m listModel) updateBrowse(msg tea.KeyMsg) (listModel, tea.Cmd, listview.Destination) {
	m.notice = ""
	switch {
	case key.Matches(msg, m.keys.quit), msg.String() == "esc":
		m.deactivate()
		return m, tea.Quit, listview.DestNone

	case key.Matches(msg, m.keys.toggle):
		if it, ok := m.selected(); ok {
			return m, m.runOp(m.ctrl.Toggle(it.ID, it.Complete)), listview.DestNone
		}
		return m, nil, listview.DestNone

	case key.Matches(msg, m.keys.add):
		m.mode = modeAdding
		m.inputErr = ""
		m.draft.SetValue(m.ctrl.Draft())
		m.draft.CursorEnd()
		return m, m.draft.Focus(), listview.DestNone

	case key.Matches(msg, m.keys.edit):
		if it, ok := m.selected(); ok {
			m.ctrl.BeginEdit(it.ID, it.Title)
			m.mode = modeEditing
			m.inputErr = ""
			m.edit.SetValue(it.Title)
			m.edit.CursorEnd()
			return m, m.edit.Focus(), listview.DestNone
		}
		return m, nil, listview.DestNone

	case key.Matches(msg, m.keys.remove):
		if it, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
			m.confirmID, m.confirmT = it.ID, it.Title
		}
		return m, nil, listview.DestNone

	case key.Matches(msg, m.keys.menu):
		m.mode = modeMenu
		m.menuIndex = 0
		return m, nil, listview.DestNone
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd, listview.DestNone
}

func (m listModel) updateAdding(msg tea.KeyMsg) (listModel, tea.Cmd, listview.Destination) {
	switch msg.String() {
	case "enter":
		m.ctrl.SetDraft(m.draft.Value())
		op := m.ctrl.Add()
		if op == nil {
			m.inputErr = "Title cannot be empty"
			return m, nil, listview.DestNone
		}
		m.draft.SetValue(m.ctrl.Draft())
		m.draft.Blur()
		m.mode = modeBrowse
		m.inputErr = ""
		return m, m.runOp(op), listview.DestNone
	case "esc":
		// keep what was typed as the draft
		m.ctrl.SetDraft(m.draft.Value())
		m.draft.Blur()
		m.mode = modeBrowse
		m.inputErr = ""
		return m, nil, listview.DestNone
	}
	var cmd tea.Cmd
	m.draft, cmd = m.draft.Update(msg)
	m.ctrl.SetDraft(m.draft.Value())
	return m, cmd, listview.DestNone
}

func (m listModel) updateEditing(msg tea.KeyMsg) (listModel, tea.Cmd, listview.Destination) {
	switch msg.String() {
	case "enter":
		op := m.ctrl.SaveEdit()
		if op == nil {
			m.inputErr = "Title cannot be empty"
			return m, nil, listview.DestNone
		}
		m.inputErr = ""
		return m, m.runOp(op), listview.DestNone
	case "esc":
		m.ctrl.CancelEdit()
		m.edit.Blur()
		m.edit.SetValue("")
		m.mode = modeBrowse
		m.inputErr = ""
		return m, nil, listview.DestNone
	}
	var cmd tea.Cmd
	m.edit, cmd = m.edit.Update(msg)
	m.ctrl.SetEditText(m.edit.Value())
	return m, cmd, listview.DestNone
}

func (m listModel) updateConfirm(msg tea.KeyMsg) (listModel, tea.Cmd, listview.Destination) {
	switch strings.ToLower(msg.String()) {
	case "y", "enter":
		m.ctrl.Remove(m.confirmID)
		m.mode = modeBrowse
		m.confirmID, m.confirmT = "", ""
		return m, m.syncItems(), listview.DestNone
	case "n", "esc", "q":
		m.mode = modeBrowse
		m.confirmID, m.confirmT = "", ""
	}
	return m, nil, listview.DestNone
}

func (m listModel) updateMenu(msg tea.KeyMsg) (listModel, tea.Cmd, listview.Destination) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuEntries)-1 {
			m.menuIndex++
		}
	case "esc", "m", "q":
		m.mode = modeBrowse
	case "enter":
		m.mode = modeBrowse
		if m.menuIndex == 0 {
			return m, m.runOp(m.ctrl.SignOut()), listview.DestNone
		}
		return m, nil, m.ctrl.ChangePassword()
	}
	return m, nil, listview.DestNone
}

func (m listModel) view() string {
	t := ui.Current()
	var b strings.Builder

	done, pending := model.Stats(m.ctrl.Items())
	title := fmt.Sprintf("TODOs List   %s %d  %s %d", t.SymDone, done, t.SymPending, pending)
	b.WriteString(appBar(title, m.width-4))
	b.WriteString("\n")

	if m.ctrl.Loading() {
		b.WriteString("\n" + m.spinner.View() + " Loading...\n")
		return panelString(b.String())
	}

	if len(m.list.Items()) == 0 {
		b.WriteString(t.Muted.Render("no items") + "\n")
	} else {
		b.WriteString(m.list.View() + "\n")
	}

	switch m.mode {
	case modeEditing:
		caption := "Edit item"
		if m.inputErr != "" {
			caption += " - " + t.Error.Render(m.inputErr)
		}
		b.WriteString(inputBox(caption, m.edit.View()))
	case modeConfirmDelete:
		caption := t.Title.Render("Confirm delete")
		body := fmt.Sprintf("Are you sure you want to delete %q? (y/n)", m.confirmT)
		b.WriteString(inputBox(caption, body))
	case modeMenu:
		var lines []string
		for i, e := range menuEntries {
			if i == m.menuIndex {
				lines = append(lines, t.Selected.Render("> "+e))
			} else {
				lines = append(lines, "  "+e)
			}
		}
		b.WriteString(inputBox(t.Title.Render("Menu"), strings.Join(lines, "\n")))
	default:
		caption := "New Todo"
		if m.mode == modeAdding {
			caption = "Add TODO (enter to save, esc to cancel)"
		}
		if m.inputErr != "" {
			caption += " - " + t.Error.Render(m.inputErr)
		}
		b.WriteString(inputBox(caption, m.draft.View()))
	}

	if err := m.ctrl.LastError(); err != nil {
		b.WriteString("\n" + t.Error.Render("✖ "+err.Error()))
	} else if m.notice != "" {
		b.WriteString("\n" + t.Success.Render(m.notice))
	}
	return panelString(b.String())
}
