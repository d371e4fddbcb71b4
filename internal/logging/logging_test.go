package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn")
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "op", "toggle")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "op=toggle")
}

func TestNew_Off(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "off")
	require.NoError(t, err)
	l.Error("nope")
	assert.Empty(t, buf.String())

	_, err = New(&buf, "loud")
	require.Error(t, err)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tada.log")
	l, c, err := Open(path, nil, "info")
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, c.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello")
}

func TestParseLevel_OnlyListedNames(t *testing.T) {
	for _, name := range Levels {
		_, _, err := ParseLevel(name)
		assert.NoError(t, err, name)
	}
	_, on, err := ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.True(t, on)

	for _, name := range []string{"", "warning", "none", "trace"} {
		_, _, err := ParseLevel(name)
		assert.Error(t, err, "%q", name)
	}
}
