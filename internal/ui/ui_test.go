package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░  50%", ProgressBar(1, 2, 10))
	assert.Equal(t, "░░░░░   0%", ProgressBar(0, 0, 1))
	assert.Equal(t, "█████ 100%", ProgressBar(3, 3, 5))
}

func TestPanel_MonoUsesASCIIBorder(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	SetTheme("mono")
	defer SetTheme("classic")

	out := Panel([]string{"a", "bb"})
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "+----+", lines[0])
	assert.Equal(t, "| a  |", lines[1])
	assert.Equal(t, "| bb |", lines[2])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
}

func TestOKFail(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	var out, errw bytes.Buffer
	OK(&out, "added")
	Fail(&errw, "boom")
	assert.Equal(t, "✔ added\n", out.String())
	assert.Equal(t, "✖ boom\n", errw.String())
}

func TestSetColorForcing(t *testing.T) {
	defer lipgloss.SetColorProfile(termenv.Ascii)

	SetColorForcing(true, false)
	assert.Equal(t, termenv.ANSI256, lipgloss.ColorProfile())

	SetColorForcing(true, true)
	assert.Equal(t, termenv.Ascii, lipgloss.ColorProfile(), "disable wins")
}
