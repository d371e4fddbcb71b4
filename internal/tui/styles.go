package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tadalive/internal/ui"
)

// panelString frames a whole screen.
func panelString(inner string) string {
	t := ui.Current()
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(inner)
}

// inputBox frames an inline input with a caption.
func inputBox(caption, input string) string {
	t := ui.Current()
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(caption + "\n" + input)
}

func appBar(title string, width int) string {
	st := ui.Current().AppBar
	if width > 0 {
		st = st.Width(width)
	}
	return st.Render(title)
}
